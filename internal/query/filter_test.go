package query

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/pbaille/diary/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func sampleEntries() []domain.Entry {
	return []domain.Entry{
		{Timestamp: at(4, 9), Text: "Coffee with Dana", PrimaryEmotion: domain.Joy},
		{Timestamp: at(5, 8), Text: "I lost my keys today", PrimaryEmotion: domain.Sadness, SecondaryEmotions: []domain.Emotion{domain.Anger}},
		{Timestamp: at(5, 21), Text: "Found the keys in the fridge", PrimaryEmotion: domain.Surprise},
		{Timestamp: at(6, 12), Text: "Storm all night", PrimaryEmotion: domain.Fear},
		{Timestamp: at(15, 7), Text: "Nothing special"},
	}
}

func assertDescending(t *testing.T, entries []domain.Entry) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Timestamp.After(entries[i].Timestamp),
			"entry %d (%s) not after entry %d (%s)", i-1, entries[i-1].Timestamp, i, entries[i].Timestamp)
	}
}

func TestFilterEmptyQueryReturnsAllSorted(t *testing.T) {
	entries := sampleEntries()

	got := Filter(entries, "")

	require.Len(t, got, len(entries))
	assertDescending(t, got)
	assert.Equal(t, at(15, 7), got[0].Timestamp)
}

func TestFilterText(t *testing.T) {
	got := Filter(sampleEntries(), "KEYS")

	require.Len(t, got, 2)
	assert.Equal(t, "Found the keys in the fridge", got[0].Text)
	assert.Equal(t, "I lost my keys today", got[1].Text)
}

func TestFilterTimestamp(t *testing.T) {
	got := Filter(sampleEntries(), "2024-03-05")

	require.Len(t, got, 2)
	for _, e := range got {
		assert.Contains(t, e.TimestampString(), "2024-03-05")
	}
	assertDescending(t, got)
}

func TestFilterEmotionExactMatch(t *testing.T) {
	entries := sampleEntries()

	byLabel := Filter(entries, "fear")
	require.Len(t, byLabel, 1)
	assert.Equal(t, "Storm all night", byLabel[0].Text)

	byGlyph := Filter(entries, domain.Sadness.Glyph())
	require.Len(t, byGlyph, 1)
	assert.Equal(t, "I lost my keys today", byGlyph[0].Text)

	// secondary emotions are not searched
	assert.Empty(t, Filter(entries, "anger"))
}

func TestFilterNoMatch(t *testing.T) {
	got := Filter(sampleEntries(), "zebra")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	entries := sampleEntries()
	before := append([]domain.Entry(nil), entries...)

	_ = Filter(entries, "")
	_ = Filter(entries, "keys")

	assert.Equal(t, before, entries)
}

func TestFilterProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"keys", "rain", "coffee", "Work", "run", "2024-03", ":30"}
	emotions := domain.Emotions()

	for round := 0; round < 50; round++ {
		var entries []domain.Entry
		used := map[int64]bool{}
		for i := 0; i < 20; i++ {
			ts := time.Date(2024, time.Month(1+rng.Intn(6)), 1+rng.Intn(28), rng.Intn(24), rng.Intn(60), 0, 0, time.UTC)
			if used[ts.UnixNano()] {
				continue
			}
			used[ts.UnixNano()] = true
			entries = append(entries, domain.Entry{
				Timestamp:      ts,
				Text:           words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))],
				PrimaryEmotion: emotions[rng.Intn(len(emotions))].Label,
			})
		}
		q := words[rng.Intn(len(words))]
		if round%5 == 0 {
			q = string(emotions[rng.Intn(len(emotions))].Label)
		}

		got := Filter(entries, q)
		assertDescending(t, got)

		want := 0
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Text), strings.ToLower(q)) ||
				strings.Contains(strings.ToLower(e.TimestampString()), strings.ToLower(q)) ||
				string(e.PrimaryEmotion) == q {
				want++
			}
		}
		assert.Len(t, got, want, "query %q", q)

		// idempotence
		assert.Equal(t, got, Filter(got, q))

		// empty query preserves cardinality
		assert.Len(t, Filter(entries, ""), len(entries))
	}
}
