// Package journal is a write-ahead intent log for stores that cannot commit several records atomically.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"go.uber.org/zap"
)

const (
	intentKeyPrefix     = "ledger_intent_"
	checkpointKey       = "ledger_journal_checkpoint"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	journalDirPerm      = 0o755

	// a checkpoint lands well inside every retained window of segments
	defaultCheckpointEvery = journalSegmentLimit / 2
	// DefaultRetain is how many resolved intents stay answerable after compaction.
	DefaultRetain = 10_000
)

// Status of a journaled intent.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
)

// BeforeImage is the state of the records a batch touches, captured before it is applied.
// A nil Wallet means no wallet existed. Holdings is the full prior list and is only
// meaningful when HoldingsTouched is set.
type BeforeImage struct {
	Wallet          *domain.Wallet   `json:"wallet,omitempty"`
	Holdings        []domain.Holding `json:"holdings,omitempty"`
	HoldingsTouched bool             `json:"holdingsTouched"`
}

// Record is one intent as persisted in the journal. Later records for the same ID supersede earlier ones.
type Record struct {
	ID     string       `json:"id"`
	Status Status       `json:"status"`
	Batch  ledger.Batch `json:"batch"`
	Before BeforeImage  `json:"before"`
	Time   time.Time    `json:"time"`
	Error  string       `json:"error,omitempty"`
}

// Journal persists intent records in a gowal log. Every few writes it appends a compacted
// checkpoint of all known intents, so segment rotation never loses an intent that is still retained.
type Journal struct {
	mu      sync.Mutex
	wal     *gowal.Wal
	logger  *zap.Logger
	records map[string]*Record
	order   []string

	checkpointEvery int
	sinceCheckpoint int
	retain          int
}

// Option configures a Journal.
type Option func(*Journal)

// WithCheckpointEvery sets how many record writes go between checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.checkpointEvery = n
		}
	}
}

// WithRetain bounds how many applied or rolled back intents a checkpoint keeps.
// Pending intents are always kept.
func WithRetain(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.retain = n
		}
	}
}

// Open opens or creates the journal under dir and loads the latest record of every intent.
func Open(dir string, logger *zap.Logger, opts ...Option) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, journalDirPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "intent_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init intent journal WAL")
	}

	j := &Journal{
		wal:             wal,
		logger:          logger,
		records:         make(map[string]*Record),
		checkpointEvery: defaultCheckpointEvery,
		retain:          DefaultRetain,
	}
	for _, opt := range opts {
		opt(j)
	}

	for msg := range wal.Iterator() {
		switch {
		case msg.Key == checkpointKey:
			var recs []Record
			if err := json.Unmarshal(msg.Value, &recs); err != nil {
				logger.Error("failed to unmarshal journal checkpoint", zap.Error(err))
				continue
			}
			j.records = make(map[string]*Record, len(recs))
			j.order = j.order[:0]
			for i := range recs {
				j.track(&recs[i])
			}
			j.sinceCheckpoint = 0
		case strings.HasPrefix(msg.Key, intentKeyPrefix):
			var rec Record
			if err := json.Unmarshal(msg.Value, &rec); err != nil {
				logger.Error("failed to unmarshal intent record", zap.Error(err), zap.String("key", msg.Key))
				continue
			}
			j.track(&rec)
			j.sinceCheckpoint++
		}
	}

	return j, nil
}

// Prepare writes a pending record for batch before any of it is applied.
func (j *Journal) Prepare(batch ledger.Batch, before BeforeImage) (*Record, error) {
	rec := &Record{
		ID:     batch.IntentID,
		Status: StatusPending,
		Batch:  batch,
		Before: before,
		Time:   time.Now().UTC(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if prev, ok := j.records[rec.ID]; ok && prev.Status == StatusApplied {
		return nil, errors.Errorf("intent %s already applied", rec.ID)
	}
	if err := j.persistLocked(rec); err != nil {
		return nil, err
	}
	j.track(rec)
	j.maybeCheckpointLocked()
	return rec, nil
}

// MarkApplied records that every mutation of rec reached the store.
func (j *Journal) MarkApplied(rec *Record) error {
	return j.transition(rec, StatusApplied, nil)
}

// MarkRolledBack records that the before-image of rec was restored.
func (j *Journal) MarkRolledBack(rec *Record, cause error) error {
	return j.transition(rec, StatusRolledBack, cause)
}

// Pending returns intents that were prepared but never resolved, oldest first.
func (j *Journal) Pending() []*Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*Record, 0)
	for _, id := range j.order {
		if rec := j.records[id]; rec.Status == StatusPending {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out
}

// Lookup returns the latest status of intent id.
func (j *Journal) Lookup(id string) (Status, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return "", false
	}
	return rec.Status, true
}

// Get returns a copy of the latest record of intent id.
func (j *Journal) Get(id string) (Record, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Checkpoint compacts the journal into one record.
func (j *Journal) Checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.checkpointLocked()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

func (j *Journal) transition(rec *Record, status Status, cause error) error {
	if rec == nil {
		return nil
	}

	next := *rec
	next.Status = status
	next.Time = time.Now().UTC()
	next.Error = ""
	if cause != nil {
		next.Error = cause.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persistLocked(&next); err != nil {
		return err
	}
	*rec = next
	j.track(&next)
	j.maybeCheckpointLocked()
	return nil
}

func (j *Journal) track(rec *Record) {
	if _, ok := j.records[rec.ID]; !ok {
		j.order = append(j.order, rec.ID)
	}
	j.records[rec.ID] = rec
}

func (j *Journal) maybeCheckpointLocked() {
	j.sinceCheckpoint++
	if j.sinceCheckpoint < j.checkpointEvery {
		return
	}
	if err := j.checkpointLocked(); err != nil {
		j.logger.Warn("journal checkpoint failed", zap.Error(err))
	}
}

// checkpointLocked forgets the oldest resolved intents past the retain limit and writes the rest.
// Resolved intents keep only what idempotency checks need.
func (j *Journal) checkpointLocked() error {
	resolved := 0
	for _, id := range j.order {
		if j.records[id].Status != StatusPending {
			resolved++
		}
	}

	kept := make([]string, 0, len(j.order))
	out := make([]Record, 0, len(j.order))
	for _, id := range j.order {
		rec := j.records[id]
		if rec.Status != StatusPending {
			if resolved > j.retain {
				resolved--
				delete(j.records, id)
				continue
			}
			compact := *rec
			compact.Before = BeforeImage{}
			compact.Batch.Mutations = nil
			j.records[id] = &compact
			rec = &compact
		}
		kept = append(kept, id)
		out = append(out, *rec)
	}
	j.order = kept

	data, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal checkpoint")
	}
	if err := j.wal.Write(j.wal.CurrentIndex()+1, checkpointKey, data); err != nil {
		return errors.Wrap(err, "write journal checkpoint")
	}
	j.sinceCheckpoint = 0
	return nil
}

func (j *Journal) persistLocked(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal intent record")
	}
	key := fmt.Sprintf("%s%s", intentKeyPrefix, rec.ID)
	nextIndex := j.wal.CurrentIndex() + 1
	return errors.Wrapf(j.wal.Write(nextIndex, key, data), "journal intent %s", rec.ID)
}
