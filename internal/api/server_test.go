package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pbaille/diary/internal/classifier"
	"github.com/pbaille/diary/internal/diary"
	"github.com/pbaille/diary/internal/domain"
	"github.com/pbaille/diary/internal/metrics"
	"github.com/pbaille/diary/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	preds []classifier.Prediction
	err   error
}

func (f fakeClassifier) Classify(ctx context.Context, text string) ([]classifier.Prediction, error) {
	return f.preds, f.err
}

func newTestServer(t *testing.T, clf diary.Classifier) *httptest.Server {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	svc := diary.New(st, clf, diary.Options{Metrics: m})
	srv := httptest.NewServer(New(svc, reg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postEntry(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/entries", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestSaveAndSearch(t *testing.T) {
	srv := newTestServer(t, fakeClassifier{preds: []classifier.Prediction{
		{Emotion: domain.Sadness, Confidence: 0.8},
		{Emotion: domain.Anger, Confidence: 0.3},
	}})

	resp, out := postEntry(t, srv.URL, `{"text":"I lost my keys today","timestamp":"2024-03-05T08:30:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sadness", out["primary_emotion"])
	assert.Equal(t, []any{"anger"}, out["secondary_emotions"])

	resp, _ = postEntry(t, srv.URL, `{"text":"Sunny walk","emotion":"joy","timestamp":"2024-03-06T08:30:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	res, err := http.Get(srv.URL + "/entries?q=2024-03-05")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Entries []domain.Entry `json:"entries"`
		Query   string         `json:"query"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "I lost my keys today", body.Entries[0].Text)
	assert.Equal(t, "2024-03-05", body.Query)
}

func TestSaveErrors(t *testing.T) {
	tests := []struct {
		name      string
		clf       diary.Classifier
		body      string
		wantCode  int
		wantState string
	}{
		{"empty text", fakeClassifier{}, `{"text":""}`, http.StatusBadRequest, "drafting"},
		{"unknown emotion", fakeClassifier{}, `{"text":"x","emotion":"bored"}`, http.StatusBadRequest, "drafting"},
		{"empty classification", fakeClassifier{}, `{"text":"x"}`, http.StatusUnprocessableEntity, "failed"},
		{"classifier down", fakeClassifier{err: &classifier.Error{Op: "http request", Kind: classifier.KindTimeout, Err: context.DeadlineExceeded}}, `{"text":"x"}`, http.StatusUnprocessableEntity, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.clf)

			resp, out := postEntry(t, srv.URL, tt.body)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantState, out["state"])

			res, err := http.Get(srv.URL + "/entries")
			require.NoError(t, err)
			defer res.Body.Close()
			var list struct {
				Entries []domain.Entry `json:"entries"`
			}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
			assert.Empty(t, list.Entries)
		})
	}
}

func TestGetAndDeleteEntry(t *testing.T) {
	srv := newTestServer(t, fakeClassifier{})
	ts := "2024-03-05T08:30:00.5Z"

	resp, _ := postEntry(t, srv.URL, `{"text":"hello","emotion":"😀","timestamp":"`+ts+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	res, err := http.Get(srv.URL + "/entries/" + ts)
	require.NoError(t, err)
	var e domain.Entry
	require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, domain.Joy, e.PrimaryEmotion)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/entries/"+ts, nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = http.Get(srv.URL + "/entries/" + ts)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(srv.URL + "/entries/not-a-time")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDraftEmotionsAndMetrics(t *testing.T) {
	srv := newTestServer(t, fakeClassifier{})

	res, err := http.Get(srv.URL + "/drafts/new")
	require.NoError(t, err)
	var draft domain.Entry
	require.NoError(t, json.NewDecoder(res.Body).Decode(&draft))
	res.Body.Close()
	assert.Empty(t, draft.Text)
	assert.WithinDuration(t, time.Now(), draft.Timestamp, time.Minute)

	res, err = http.Get(srv.URL + "/emotions")
	require.NoError(t, err)
	var vocab struct {
		Emotions []domain.EmotionInfo `json:"emotions"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&vocab))
	res.Body.Close()
	assert.Equal(t, domain.Emotions(), vocab.Emotions)

	postEntry(t, srv.URL, `{"text":"x"}`)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `diary_saves_total{outcome="failed",path="classified"} 1`)
}

func TestStorageOutageIsUnavailableOnEveryRoute(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	svc := diary.New(st, fakeClassifier{}, diary.Options{})
	srv := httptest.NewServer(New(svc, nil, nil).Handler())
	t.Cleanup(srv.Close)
	require.NoError(t, st.Close())

	ts := "2024-03-05T08:30:00Z"
	requests := map[string]func() (*http.Response, error){
		"search": func() (*http.Response, error) { return http.Get(srv.URL + "/entries?q=keys") },
		"get":    func() (*http.Response, error) { return http.Get(srv.URL + "/entries/" + ts) },
		"save": func() (*http.Response, error) {
			return http.Post(srv.URL+"/entries", "application/json",
				strings.NewReader(`{"text":"x","emotion":"joy","timestamp":"`+ts+`"}`))
		},
		"delete": func() (*http.Response, error) {
			req, err := http.NewRequest(http.MethodDelete, srv.URL+"/entries/"+ts, nil)
			if err != nil {
				return nil, err
			}
			return http.DefaultClient.Do(req)
		},
	}

	for name, do := range requests {
		t.Run(name, func(t *testing.T) {
			res, err := do()
			require.NoError(t, err)
			res.Body.Close()
			assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
		})
	}
}

func TestOutOfRangeTimestampIsBadRequest(t *testing.T) {
	srv := newTestServer(t, fakeClassifier{})
	far := "2300-01-01T00:00:00Z"

	resp, out := postEntry(t, srv.URL, `{"text":"x","emotion":"joy","timestamp":"`+far+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "drafting", out["state"])

	res, err := http.Get(srv.URL + "/entries/" + far)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(srv.URL + "/entries")
	require.NoError(t, err)
	defer res.Body.Close()
	var list struct {
		Entries []domain.Entry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Empty(t, list.Entries)
}
