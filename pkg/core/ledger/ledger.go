package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

// DefaultLockTimeout is how long a mutation waits for the ledger lock before failing
const DefaultLockTimeout = 30 * time.Second

const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Store persists ledger entries. Both the sheets-backed db.DB and postgres.DB implement it.
type Store interface {
	ListPriorities(ctx context.Context) ([]model.PriorityEntry, error)
	// UpsertPriorities writes each entry, updating the existing row for its email or appending a new one
	UpsertPriorities(ctx context.Context, entries []model.PriorityEntry) error
}

// AdjustmentRecord describes one applied change, for the audit trail
type AdjustmentRecord struct {
	Email    string
	Name     string
	Delta    int
	Previous int
	New      int
	Mode     string
	At       time.Time
}

// AuditSink receives applied adjustments. Failures are logged and never undo an adjustment.
type AuditSink interface {
	RecordAdjustments(ctx context.Context, records []AdjustmentRecord) error
}

// Observer receives lock and adjustment measurements
type Observer interface {
	ObserveLockWait(wait time.Duration, acquired bool)
	ObserveAdjustments(mode string, count int)
}

type noopObserver struct{}

func (noopObserver) ObserveLockWait(time.Duration, bool) {}
func (noopObserver) ObserveAdjustments(string, int)      {}

// Snapshot is a point-in-time read of the ledger keyed by normalized email
type Snapshot map[string]int

// Priority returns the score for email, or 0 if the member has no entry
func (s Snapshot) Priority(email string) int {
	return s[model.NormalizeEmail(email)]
}

// AdjustmentResult is the outcome for one email in a batch
type AdjustmentResult struct {
	Email    string `json:"email"`
	Previous int    `json:"previous"`
	New      int    `json:"newValue"`
	Added    bool   `json:"added"`
}

// BatchSummary reports what a batch adjustment did
type BatchSummary struct {
	Processed int                `json:"processed"`
	Added     int                `json:"added"`
	Updated   int                `json:"updated"`
	Skipped   int                `json:"skipped"`
	Results   []AdjustmentResult `json:"results"`
}

// Message mirrors the text shown to operators after a batch
func (s BatchSummary) Message() string {
	return fmt.Sprintf("Processed %d adjustments.", s.Processed)
}

// Ledger is the persistent per-member priority score store.
//
// All mutations take a single ledger-wide lock with a bounded wait. Two adjustments to different
// members are still serialized; this keeps read-modify-write free of lost updates at the scale
// of a club roster.
//
// Single adjustments never take a score below zero. Batch adjustments apply their deltas as given
// unless WithBatchFloor(true) is set.
type Ledger struct {
	store       Store
	locker      Locker
	lockTimeout time.Duration
	batchFloor  bool
	logger      *zap.Logger
	observer    Observer
	audit       AuditSink
	now         func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithLockTimeout overrides DefaultLockTimeout
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.lockTimeout = d }
}

// WithBatchFloor applies the single-adjustment floor guard to batches as well
func WithBatchFloor(enabled bool) Option {
	return func(l *Ledger) { l.batchFloor = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

func WithAuditSink(a AuditSink) Option {
	return func(l *Ledger) { l.audit = a }
}

// New creates a Ledger over store guarded by locker
func New(store Store, locker Locker, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		locker:      locker,
		lockTimeout: DefaultLockTimeout,
		logger:      zap.NewNop(),
		observer:    noopObserver{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns all ledger entries with normalized emails, skipping rows without an email
func (l *Ledger) List(ctx context.Context) ([]model.PriorityEntry, error) {
	entries, err := l.store.ListPriorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list priorities: %w", err)
	}

	result := make([]model.PriorityEntry, 0, len(entries))
	for _, e := range entries {
		e.Email = model.NormalizeEmail(e.Email)
		if e.Email == "" {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Snapshot reads the whole ledger once. The first row for an email wins.
func (l *Ledger) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		if _, exists := snap[e.Email]; exists {
			continue
		}
		snap[e.Email] = e.Priority
	}
	return snap, nil
}

// Get returns the score for email, 0 if absent
func (l *Ledger) Get(ctx context.Context, email string) (int, error) {
	snap, err := l.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Priority(email), nil
}

// AdjustOne applies delta to a single member under the ledger lock and returns the new score.
//
// Unknown members are created with delta as their starting score. A decrement never takes a
// score below zero, and is a no-op when the score is already zero or less (an unknown member
// is not created by a decrement).
func (l *Ledger) AdjustOne(ctx context.Context, email, name string, delta int) (int, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return 0, fmt.Errorf("email is required")
	}

	release, err := l.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer l.release(release)

	entries, err := l.List(ctx)
	if err != nil {
		return 0, err
	}

	entry, found := findEntry(entries, email)
	previous := 0
	if found {
		previous = entry.Priority
	} else {
		entry = model.PriorityEntry{Email: email, Name: name}
	}

	newValue := floorAdjust(previous, delta)
	if newValue == previous {
		l.logger.Debug("Priority adjustment is a no-op",
			zap.String("email", email),
			zap.Int("priority", previous),
			zap.Int("delta", delta))
		return previous, nil
	}

	entry.Priority = newValue
	if entry.Name == "" {
		entry.Name = name
	}

	if err := l.store.UpsertPriorities(ctx, []model.PriorityEntry{entry}); err != nil {
		return 0, fmt.Errorf("failed to write priority for %s: %w", email, err)
	}

	l.logger.Info("Priority adjusted",
		zap.String("email", email),
		zap.Int("previous", previous),
		zap.Int("new", newValue),
		zap.Bool("added", !found))

	l.observer.ObserveAdjustments(ModeSingle, 1)
	l.recordAudit(ctx, []AdjustmentRecord{{
		Email:    email,
		Name:     entry.Name,
		Delta:    newValue - previous,
		Previous: previous,
		New:      newValue,
		Mode:     ModeSingle,
		At:       l.now(),
	}})

	return newValue, nil
}

// AdjustBatch applies all adjustments under one acquisition of the ledger lock.
//
// Entries with an empty email or a zero delta are skipped. An email repeated within the batch
// accumulates. The whole batch is written with one store call; if that call fails part way the
// rows already written stay written.
func (l *Ledger) AdjustBatch(ctx context.Context, adjustments []model.Adjustment) (BatchSummary, error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return BatchSummary{}, err
	}
	defer l.release(release)

	entries, err := l.List(ctx)
	if err != nil {
		return BatchSummary{}, err
	}

	// Working copy of the ledger; index of the first row per email
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, exists := index[e.Email]; !exists {
			index[e.Email] = i
		}
	}

	summary := BatchSummary{Results: []AdjustmentResult{}}
	touched := make([]string, 0, len(adjustments))
	touchedSet := make(map[string]bool)
	added := make(map[string]bool)
	records := make([]AdjustmentRecord, 0, len(adjustments))
	now := l.now()

	for _, adj := range adjustments {
		email := model.NormalizeEmail(adj.Email)
		if email == "" || adj.Delta == 0 {
			summary.Skipped++
			continue
		}

		idx, exists := index[email]
		previous := 0
		if exists {
			previous = entries[idx].Priority
		} else {
			entries = append(entries, model.PriorityEntry{Email: email, Name: adj.Name})
			idx = len(entries) - 1
			index[email] = idx
			added[email] = true
		}

		newValue := previous + adj.Delta
		if l.batchFloor {
			newValue = floorAdjust(previous, adj.Delta)
		}
		entries[idx].Priority = newValue
		if entries[idx].Name == "" {
			entries[idx].Name = adj.Name
		}

		if !touchedSet[email] {
			touchedSet[email] = true
			touched = append(touched, email)
		}

		summary.Processed++
		summary.Results = append(summary.Results, AdjustmentResult{
			Email:    email,
			Previous: previous,
			New:      newValue,
			Added:    !exists,
		})
		records = append(records, AdjustmentRecord{
			Email:    email,
			Name:     entries[idx].Name,
			Delta:    newValue - previous,
			Previous: previous,
			New:      newValue,
			Mode:     ModeBatch,
			At:       now,
		})
	}

	if len(touched) == 0 {
		return summary, nil
	}

	writes := make([]model.PriorityEntry, 0, len(touched))
	for _, email := range touched {
		writes = append(writes, entries[index[email]])
		if added[email] {
			summary.Added++
		} else {
			summary.Updated++
		}
	}

	if err := l.store.UpsertPriorities(ctx, writes); err != nil {
		return BatchSummary{}, fmt.Errorf("failed to write priority batch: %w", err)
	}

	l.logger.Info("Priority batch applied",
		zap.Int("processed", summary.Processed),
		zap.Int("added", summary.Added),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped))

	l.observer.ObserveAdjustments(ModeBatch, summary.Processed)
	l.recordAudit(ctx, records)

	return summary, nil
}

func (l *Ledger) acquire(ctx context.Context) (Release, error) {
	start := time.Now()
	release, err := l.locker.Acquire(ctx, l.lockTimeout)
	l.observer.ObserveLockWait(time.Since(start), err == nil)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			l.logger.Warn("Timed out waiting for ledger lock", zap.Duration("timeout", l.lockTimeout))
			return nil, fmt.Errorf("priority ledger is busy, retry the adjustment: %w", err)
		}
		return nil, fmt.Errorf("failed to acquire ledger lock: %w", err)
	}
	return release, nil
}

func (l *Ledger) release(release Release) {
	if err := release(); err != nil {
		l.logger.Error("Failed to release ledger lock", zap.Error(err))
	}
}

func (l *Ledger) recordAudit(ctx context.Context, records []AdjustmentRecord) {
	if l.audit == nil || len(records) == 0 {
		return
	}
	if err := l.audit.RecordAdjustments(ctx, records); err != nil {
		l.logger.Warn("Failed to record priority adjustments", zap.Error(err), zap.Int("count", len(records)))
	}
}

func findEntry(entries []model.PriorityEntry, email string) (model.PriorityEntry, bool) {
	for _, e := range entries {
		if e.Email == email {
			return e, true
		}
	}
	return model.PriorityEntry{}, false
}

// floorAdjust applies delta without letting a decrement go below zero.
// A score already at or below zero is left alone by a decrement.
func floorAdjust(current, delta int) int {
	if delta >= 0 {
		return current + delta
	}
	if current <= 0 {
		return current
	}
	return max(current+delta, 0)
}
