package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimestampLayout is the string form of an entry timestamp used for display and search.
const TimestampLayout = "2006-01-02 15:04:05 -0700"

// Entries are keyed by nanoseconds since the Unix epoch, which bounds the
// timestamps that can be stored.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// CheckTimestamp rejects the zero time and instants outside
// [MinTimestamp, MaxTimestamp].
func CheckTimestamp(ts time.Time) error {
	if ts.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEntry)
	}
	if ts.Before(MinTimestamp) || ts.After(MaxTimestamp) {
		return fmt.Errorf("%w: timestamp %s outside %d-%d", ErrInvalidEntry,
			ts.UTC().Format(time.RFC3339), MinTimestamp.Year(), MaxTimestamp.Year())
	}
	return nil
}

// Entry represents a single diary record
type Entry struct {
	Timestamp         time.Time `json:"timestamp"`
	Text              string    `json:"text"`
	PrimaryEmotion    Emotion   `json:"primary_emotion,omitempty"`
	SecondaryEmotions []Emotion `json:"secondary_emotions,omitempty"`
}

// NewDraft returns an unsaved entry stamped with now
func NewDraft(now time.Time) Entry {
	return Entry{Timestamp: now}
}

// Classified reports whether the entry has a primary emotion
func (e Entry) Classified() bool {
	return e.PrimaryEmotion != ""
}

// TimestampString renders the timestamp in UTC using TimestampLayout.
func (e Entry) TimestampString() string {
	return e.Timestamp.UTC().Format(TimestampLayout)
}

// Validate checks the invariants every persisted entry must hold.
func (e Entry) Validate() error {
	if err := CheckTimestamp(e.Timestamp); err != nil {
		return err
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidEntry)
	}
	if e.PrimaryEmotion != "" && !e.PrimaryEmotion.Valid() {
		return fmt.Errorf("%w: unknown emotion %q", ErrInvalidEntry, e.PrimaryEmotion)
	}

	seen := make(map[Emotion]bool, len(e.SecondaryEmotions))
	for _, em := range e.SecondaryEmotions {
		switch {
		case !em.Valid():
			return fmt.Errorf("%w: unknown secondary emotion %q", ErrInvalidEntry, em)
		case em == e.PrimaryEmotion:
			return fmt.Errorf("%w: secondary emotion %q repeats primary", ErrInvalidEntry, em)
		case seen[em]:
			return fmt.Errorf("%w: duplicate secondary emotion %q", ErrInvalidEntry, em)
		}
		seen[em] = true
	}
	return nil
}

// Glyphs returns the primary glyph followed by the secondary ones.
func (e Entry) Glyphs() string {
	if !e.Classified() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(e.PrimaryEmotion.Glyph())
	for _, em := range e.SecondaryEmotions {
		sb.WriteString(em.Glyph())
	}
	return sb.String()
}
