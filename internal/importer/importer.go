package importer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/kingdom-atlas/kvk-tracker/internal/metrics"
	"github.com/kingdom-atlas/kvk-tracker/internal/notifier"
	"github.com/kingdom-atlas/kvk-tracker/internal/pubsub"
)

var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrWrongStage      = errors.New("operation not allowed in the session's current stage")
	ErrNoAcceptedRows  = errors.New("file has no valid rows to import")
)

// Importer runs the reconciliation pipeline and tracks in-flight operator
// sessions. One session moves input -> preview -> duplicates -> committing
// and back to input; sessions are discarded after commit or an explicit back.
type Importer struct {
	store    kingdom.Store
	metrics  metrics.Metrics
	counters metrics.MetricsStore
	notifier notifier.Notifier
	pubsub   pubsub.PubSubClient

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Importer. counters may be nil when persistent counters are
// not wanted (tests, CLI usage).
func New(store kingdom.Store, m metrics.Metrics, counters metrics.MetricsStore, n notifier.Notifier, ps pubsub.PubSubClient) *Importer {
	return &Importer{
		store:    store,
		metrics:  m,
		counters: counters,
		notifier: n,
		pubsub:   ps,
		sessions: make(map[string]*Session),
	}
}

// Preview runs the parse, validate and duplicate-detection stages and opens a
// new session. Nothing is written; the session holds everything the commit
// needs plus the diagnostics for operator display.
func (i *Importer) Preview(filename string, r io.Reader) (*Session, error) {
	table, err := ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	validation, err := Validate(table)
	if err != nil {
		return nil, err
	}
	partition, err := Detect(i.store, validation.Accepted())
	if err != nil {
		return nil, fmt.Errorf("duplicate detection failed: %w", err)
	}

	session := &Session{
		ID:         uuid.NewString(),
		Stage:      StagePreview,
		Validation: validation,
		Partition:  partition,
		Ledger:     NewLedger(partition.Conflicts),
		CreatedAt:  time.Now(),
	}
	if len(partition.Conflicts) > 0 {
		session.Stage = StageDuplicates
	}

	i.mu.Lock()
	i.sessions[session.ID] = session
	i.mu.Unlock()

	log.Info("Import preview ready",
		"session", session.ID,
		"rows", len(validation.Candidates),
		"diagnostics", len(validation.Diagnostics),
		"fresh", len(partition.Fresh),
		"conflicts", len(partition.Conflicts),
		"missingKingdoms", len(partition.MissingKingdoms))
	return session, nil
}

// Session returns an open session by id.
func (i *Importer) Session(id string) (*Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	session, ok := i.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Back discards a session, returning the operator to the input stage. The
// store was never touched, so there is nothing to roll back.
func (i *Importer) Back(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	session, ok := i.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Stage == StageCommitting {
		return ErrWrongStage
	}
	delete(i.sessions, id)
	return nil
}

// ResolveAll bulk-sets every conflict decision on a session.
func (i *Importer) ResolveAll(id string, d Decision) error {
	session, err := i.Session(id)
	if err != nil {
		return err
	}
	if session.Stage != StageDuplicates && session.Stage != StagePreview {
		return ErrWrongStage
	}
	session.Ledger.SetAll(d)
	return nil
}

// Resolve toggles one conflict decision on a session and returns the new
// value.
func (i *Importer) Resolve(id string, key kvk.MatchKey) (Decision, error) {
	session, err := i.Session(id)
	if err != nil {
		return "", err
	}
	if session.Stage != StageDuplicates && session.Stage != StagePreview {
		return "", ErrWrongStage
	}
	d, ok := session.Ledger.Toggle(key)
	if !ok {
		return "", fmt.Errorf("kingdom %d KvK %d is not a conflicting row", key.KingdomID, key.KvKID)
	}
	return d, nil
}

// Commit applies a previewed session to the store and runs the recalculation
// cascade. Precondition failures (unknown session, wrong stage, empty file)
// return an error; pipeline failures after that point come back on the
// report, because partial progress and the audit record still exist.
func (i *Importer) Commit(id, operator string, dryRun bool, onProgress ProgressFunc) (*Report, error) {
	session, err := i.Session(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	prevStage := session.Stage
	if prevStage != StagePreview && prevStage != StageDuplicates {
		session.mu.Unlock()
		return nil, ErrWrongStage
	}
	session.Stage = StageCommitting
	session.mu.Unlock()

	// The ledger is read exactly once; later edits target a dead session.
	decisions := session.Ledger.Snapshot()

	fresh := make([]kvk.MatchRecord, 0, len(session.Partition.Fresh))
	for _, c := range session.Partition.Fresh {
		fresh = append(fresh, c.Record)
	}
	var replace []kvk.MatchRecord
	skipped := 0
	for _, c := range session.Partition.Conflicts {
		if decisions[c.Incoming.Key()] == DecisionReplace {
			replace = append(replace, c.Incoming)
		} else {
			skipped++
		}
	}

	if len(fresh)+len(replace) == 0 {
		session.mu.Lock()
		session.Stage = prevStage
		session.mu.Unlock()
		return nil, ErrNoAcceptedRows
	}

	// The preview computed the missing ids over every accepted row; only
	// kingdoms the committed rows actually reference get provisioned, so a
	// skipped conflict cannot leave a phantom zero-value kingdom behind.
	missing := filterMissing(session.Partition.MissingKingdoms, fresh, replace)

	start := time.Now()
	report := &Report{
		BatchID:          uuid.NewString(),
		Operator:         operator,
		TotalRows:        len(session.Validation.Candidates),
		Skipped:          skipped,
		ValidationErrors: len(session.Validation.Diagnostics),
	}

	result, commitErr := commit(i.store, fresh, replace, missing, onProgress)
	report.Inserted = result.Inserted
	report.Replaced = result.Replaced
	report.KingdomsCreated = result.KingdomsCreated
	report.Cycles = result.Cycles
	report.Warnings = append(report.Warnings, result.Warnings...)
	if commitErr != nil {
		report.Error = commitErr.Error()
		log.Error("Import commit failed", "session", id, "batch", report.BatchID, "error", commitErr)
	}

	// The cascade only covers what was actually written; on a fatal commit
	// error that is the applied prefix, which still needs fresh aggregates.
	if len(result.TouchedKingdoms) > 0 {
		runCascade(i.store, result.TouchedKingdoms, result.Cycles, report)
	}

	i.finishCommit(session, report, dryRun, time.Since(start))
	return report, nil
}

// finishCommit records the audit row, emits metrics and events, and returns
// the session to the input stage. Every step is best-effort; the commit
// itself is already durable.
func (i *Importer) finishCommit(session *Session, report *Report, dryRun bool, elapsed time.Duration) {
	batch := kvk.ImportBatch{
		ID:               report.BatchID,
		Operator:         report.Operator,
		TotalRows:        report.TotalRows,
		InsertedRows:     report.Inserted,
		ReplacedRows:     report.Replaced,
		SkippedRows:      report.Skipped,
		KingdomsCreated:  report.KingdomsCreated,
		ValidationErrors: report.ValidationErrors,
		KvKIDs:           report.Cycles,
		CreatedAt:        time.Now().Unix(),
	}
	if err := i.store.RecordImportBatch(batch); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("failed to record audit batch: %v", err))
		log.Error("Failed to record import batch", "batch", batch.ID, "error", err)
	}

	i.metrics.IncImportRuns()
	i.metrics.ObserveImportDuration(elapsed.Seconds())
	i.metrics.AddRowsInserted(report.Inserted)
	i.metrics.AddRowsReplaced(report.Replaced)
	i.metrics.AddRowsSkipped(report.Skipped)
	if report.Error != "" {
		i.metrics.IncImportFailures()
	}
	if i.counters != nil {
		i.counters.Increment("import_runs")
		i.counters.Add("rows_inserted", report.Inserted)
		i.counters.Add("rows_replaced", report.Replaced)
		i.counters.Add("rows_skipped", report.Skipped)
	}

	if i.pubsub != nil {
		event := pubsub.ImportCompleted{
			BatchID:  report.BatchID,
			Operator: report.Operator,
			Inserted: report.Inserted,
			Replaced: report.Replaced,
			Skipped:  report.Skipped,
			Cycles:   report.Cycles,
			Warnings: report.Warnings,
			Failed:   report.Error != "",
		}
		if err := i.pubsub.SendMessage(pubsub.EventImportCompleted, event); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to publish import-completed event: %v", err))
		}
	}

	if i.notifier != nil {
		if err := i.notifier.SendImportSummary(batch, report.Warnings, dryRun); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to send import summary: %v", err))
		}
	}

	report.Summary = summarize(report)
	log.Info("Import run finished",
		"batch", report.BatchID,
		"operator", report.Operator,
		"inserted", report.Inserted,
		"replaced", report.Replaced,
		"skipped", report.Skipped,
		"warnings", len(report.Warnings),
		"failed", report.Error != "",
		"duration", elapsed)

	session.mu.Lock()
	session.Stage = StageInput
	session.mu.Unlock()

	i.mu.Lock()
	delete(i.sessions, session.ID)
	i.mu.Unlock()
}

// filterMissing keeps the missing ids referenced (own side or opponent) by
// the records actually being written.
func filterMissing(missing []int64, fresh, replace []kvk.MatchRecord) []int64 {
	referenced := make(map[int64]bool, 2*(len(fresh)+len(replace)))
	note := func(records []kvk.MatchRecord) {
		for _, r := range records {
			referenced[r.KingdomID] = true
			if r.OpponentID != kvk.NoOpponent {
				referenced[r.OpponentID] = true
			}
		}
	}
	note(fresh)
	note(replace)

	kept := make([]int64, 0, len(missing))
	for _, id := range missing {
		if referenced[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

func summarize(r *Report) string {
	s := fmt.Sprintf("Imported %d rows: %d inserted, %d replaced, %d skipped", r.TotalRows, r.Inserted, r.Replaced, r.Skipped)
	if r.KingdomsCreated > 0 {
		s += fmt.Sprintf(", %d kingdoms created", r.KingdomsCreated)
	}
	if r.ValidationErrors > 0 {
		s += fmt.Sprintf(", %d rows rejected by validation", r.ValidationErrors)
	}
	if r.Error != "" {
		s += ". Commit aborted: " + r.Error
	}
	return s
}
