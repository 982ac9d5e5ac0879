// Package diary implements the entry service: drafts, search, deletion and
// the save workflow that resolves an entry's emotion before persisting it.
package diary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pbaille/diary/internal/classifier"
	"github.com/pbaille/diary/internal/domain"
	"github.com/pbaille/diary/internal/metrics"
	"github.com/pbaille/diary/internal/query"
)

// EntryStore is the durable entry collection, keyed by timestamp.
type EntryStore interface {
	List(ctx context.Context) ([]domain.Entry, error)
	Get(ctx context.Context, ts time.Time) (domain.Entry, error)
	Save(ctx context.Context, e domain.Entry) (domain.Entry, error)
	Delete(ctx context.Context, ts time.Time) error
}

// Classifier infers emotions from text, ranked by descending confidence.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]classifier.Prediction, error)
}

// Options holds the optional collaborators of a Service
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Now defaults to time.Now
	Now func() time.Time
}

// Service is the single entry point the UI layer talks to
type Service struct {
	store      EntryStore
	classifier Classifier
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	locks      *keyLock
}

// New creates a Service over the given store and classifier
func New(store EntryStore, clf Classifier, opts Options) *Service {
	s := &Service{
		store:      store,
		classifier: clf,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
		locks:      newKeyLock(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "diary")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SaveRequest is the input of Save. An empty Emotion asks for classification;
// a zero Timestamp means now.
type SaveRequest struct {
	Text      string
	Emotion   string
	Timestamp time.Time
}

// NewDraft returns an empty, unsaved entry stamped with the current time
func (s *Service) NewDraft() domain.Entry {
	return domain.NewDraft(s.now())
}

// Search returns the entries matching q, most recent first
func (s *Service) Search(ctx context.Context, q string) ([]domain.Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return query.Filter(entries, q), nil
}

// Entries returns every entry, most recent first
func (s *Service) Entries(ctx context.Context) ([]domain.Entry, error) {
	return s.Search(ctx, "")
}

// Get returns the entry saved under ts
func (s *Service) Get(ctx context.Context, ts time.Time) (domain.Entry, error) {
	return s.store.Get(ctx, ts)
}

// Delete removes the entry saved under ts. It waits for any in-flight save
// of the same timestamp so the two cannot interleave.
func (s *Service) Delete(ctx context.Context, ts time.Time) error {
	if err := domain.CheckTimestamp(ts); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	unlock := s.locks.Lock(ts.UnixNano())
	defer unlock()

	if err := s.store.Delete(ctx, ts); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.log.Info("entry deleted", "timestamp", ts.Format(time.RFC3339Nano))
	return nil
}

// Save runs the save workflow. With a chosen emotion the entry is persisted
// directly; otherwise the text is classified first and the entry is persisted
// only if at least one emotion could be resolved. On failure the returned
// error is a *SaveError and the store was not written.
func (s *Service) Save(ctx context.Context, req SaveRequest) (domain.Entry, error) {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	log := s.log.With("timestamp", ts.Format(time.RFC3339Nano))

	path := metrics.PathClassified
	if req.Emotion != "" {
		path = metrics.PathChosen
	}

	if strings.TrimSpace(req.Text) == "" {
		s.metrics.RecordSave(path, metrics.OutcomeInvalid)
		return domain.Entry{}, &SaveError{Timestamp: ts, State: StateDrafting, Err: fmt.Errorf("%w: empty text", domain.ErrInvalidEntry)}
	}

	if err := domain.CheckTimestamp(ts); err != nil {
		s.metrics.RecordSave(path, metrics.OutcomeInvalid)
		return domain.Entry{}, &SaveError{Timestamp: ts, State: StateDrafting, Err: err}
	}

	entry := domain.Entry{Timestamp: ts, Text: req.Text}
	if req.Emotion != "" {
		em, ok := domain.ParseEmotion(req.Emotion)
		if !ok {
			s.metrics.RecordSave(path, metrics.OutcomeInvalid)
			return domain.Entry{}, &SaveError{Timestamp: ts, State: StateDrafting, Err: fmt.Errorf("%w: unknown emotion %q", domain.ErrInvalidEntry, req.Emotion)}
		}
		entry.PrimaryEmotion = em
	}

	unlock := s.locks.Lock(ts.UnixNano())
	defer unlock()

	if !entry.Classified() {
		log.Debug("save state", "state", StateClassifying)
		primary, secondary, err := s.classify(ctx, req.Text)
		if err != nil {
			log.Warn("classification failed, entry not saved", "state", StateFailed, "error", err)
			s.metrics.RecordSave(path, metrics.OutcomeFailed)
			return domain.Entry{}, &SaveError{Timestamp: ts, State: StateFailed, Err: err}
		}
		entry.PrimaryEmotion = primary
		entry.SecondaryEmotions = secondary
	}

	// a cancelled workflow must not write, even after classification returned
	if err := ctx.Err(); err != nil {
		s.metrics.RecordSave(path, metrics.OutcomeFailed)
		return domain.Entry{}, &SaveError{Timestamp: ts, State: StateFailed, Err: err}
	}

	saved, err := s.store.Save(ctx, entry)
	if err != nil {
		log.Error("persist entry failed", "error", err)
		s.metrics.RecordSave(path, metrics.OutcomeFailed)
		return domain.Entry{}, &SaveError{Timestamp: ts, State: StateFailed, Err: err}
	}

	s.metrics.RecordSave(path, metrics.OutcomeResolved)
	log.Info("entry saved", "state", StateResolved, "path", path, "emotion", saved.PrimaryEmotion, "secondary", len(saved.SecondaryEmotions))
	return saved, nil
}

func (s *Service) classify(ctx context.Context, text string) (domain.Emotion, []domain.Emotion, error) {
	start := time.Now()
	preds, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.metrics.RecordClassification(time.Since(start), reasonFor(err))
		return "", nil, err
	}

	primary, secondary, ok := resolveEmotions(preds)
	if !ok {
		s.metrics.RecordClassification(time.Since(start), "empty")
		return "", nil, domain.ErrEmptyClassification
	}
	s.metrics.RecordClassification(time.Since(start), "")
	return primary, secondary, nil
}

// resolveEmotions takes the first prediction as primary and the rest, in
// order and without repeats, as secondary.
func resolveEmotions(preds []classifier.Prediction) (domain.Emotion, []domain.Emotion, bool) {
	var (
		primary   domain.Emotion
		secondary []domain.Emotion
		seen      = make(map[domain.Emotion]bool, len(preds))
	)
	for _, p := range preds {
		if !p.Emotion.Valid() || seen[p.Emotion] {
			continue
		}
		seen[p.Emotion] = true
		if primary == "" {
			primary = p.Emotion
			continue
		}
		secondary = append(secondary, p.Emotion)
	}
	return primary, secondary, primary != ""
}

func reasonFor(err error) string {
	if kind := classifier.KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
