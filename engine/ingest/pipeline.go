package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/validate"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultActor         = "ingest"
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Config assembles a Pipeline.
type Config struct {
	Registry  *entity.Registry
	Rules     validate.Rules
	Source    Reader
	Staging   Staging
	RunLog    RunLog
	Gateway   Gateway
	Sequences SequenceSyncer
	Observer  Observer
	// Actor is stamped on audit records written by batch loads.
	Actor string
	// Tables limits the run to a subset of kinds. Dependency order is
	// preserved regardless of the order given here.
	Tables []entity.Kind
	// RetryAttempts bounds how often a retryable stage runs per table.
	RetryAttempts uint64
	RetryDelay    time.Duration
}

// Pipeline runs the three-stage batch load.
type Pipeline struct {
	registry  *entity.Registry
	rules     validate.Rules
	source    Reader
	staging   Staging
	runLog    RunLog
	gateway   Gateway
	sequences SequenceSyncer
	observer  Observer
	actor     string
	tables    []entity.Kind
	attempts  uint64
	delay     time.Duration
}

// Summary aggregates one run: its id and every run entry in stage
// order.
type Summary struct {
	RunID   uuid.UUID
	Entries []*RunEntry
}

// New validates the configuration and applies defaults.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline config is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("extract reader is required")
	}
	if cfg.Staging == nil {
		return nil, fmt.Errorf("staging store is required")
	}
	if cfg.RunLog == nil {
		return nil, fmt.Errorf("run log is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("mutation gateway is required")
	}
	if cfg.Sequences == nil {
		return nil, fmt.Errorf("sequence syncer is required")
	}
	p := &Pipeline{
		registry:  cfg.Registry,
		rules:     cfg.Rules,
		source:    cfg.Source,
		staging:   cfg.Staging,
		runLog:    cfg.RunLog,
		gateway:   cfg.Gateway,
		sequences: cfg.Sequences,
		observer:  cfg.Observer,
		actor:     cfg.Actor,
		attempts:  cfg.RetryAttempts,
		delay:     cfg.RetryDelay,
	}
	if p.rules == nil {
		p.rules = validate.DefaultRules()
	}
	if p.actor == "" {
		p.actor = defaultActor
	}
	if p.attempts == 0 {
		p.attempts = defaultRetryAttempts
	}
	if p.delay <= 0 {
		p.delay = defaultRetryDelay
	}
	tables, err := orderTables(cfg.Registry, cfg.Tables)
	if err != nil {
		return nil, err
	}
	p.tables = tables
	return p, nil
}

func orderTables(registry *entity.Registry, requested []entity.Kind) ([]entity.Kind, error) {
	if len(requested) == 0 {
		return registry.Kinds(), nil
	}
	wanted := make(map[entity.Kind]bool, len(requested))
	for _, kind := range requested {
		if _, err := registry.Get(kind); err != nil {
			return nil, err
		}
		wanted[kind] = true
	}
	var tables []entity.Kind
	for _, kind := range registry.Kinds() {
		if wanted[kind] {
			tables = append(tables, kind)
		}
	}
	return tables, nil
}

// Run executes the three stages over the configured tables. The run
// log keeps an entry per stage and table, failures included; the first
// failed stage aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.New()}
	log := logger.FromContext(ctx)
	log.Info("Ingest run starting", "run_id", summary.RunID, "tables", len(p.tables))
	if err := p.stageAll(ctx, summary); err != nil {
		return summary, fmt.Errorf("staging: %w", err)
	}
	if err := p.transformAll(ctx, summary); err != nil {
		return summary, fmt.Errorf("transforming: %w", err)
	}
	if err := p.loadAll(ctx, summary); err != nil {
		return summary, fmt.Errorf("loading: %w", err)
	}
	log.Info("Ingest run complete", "run_id", summary.RunID, "entries", len(summary.Entries))
	return summary, nil
}

// stageAll loads every table's extract into staging. The staging
// tables are independent, so tables run concurrently.
func (p *Pipeline) stageAll(ctx context.Context, summary *Summary) error {
	entries := make([]*RunEntry, len(p.tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range p.tables {
		g.Go(func() error {
			def, err := p.registry.Get(kind)
			if err != nil {
				return err
			}
			entry, err := p.stageTable(gctx, summary.RunID, def)
			entries[i] = entry
			return err
		})
	}
	runErr := g.Wait()
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if err := p.record(ctx, summary, entry); err != nil {
			return err
		}
	}
	return runErr
}

func (p *Pipeline) stageTable(ctx context.Context, runID uuid.UUID, def *entity.Def) (*RunEntry, error) {
	entry := newEntry(runID, StageLoadStaging, def.Table)
	var staged int64
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		n, err := p.stageOnce(ctx, def)
		if err != nil {
			logger.FromContext(ctx).Warn("Staging attempt failed", "table", def.Table, "error", err)
			return retry.RetryableError(err)
		}
		staged = n
		return nil
	})
	entry.Processed = staged
	finishEntry(entry, err)
	if err != nil {
		return entry, fmt.Errorf("staging %s: %w", def.Table, err)
	}
	logger.FromContext(ctx).Info("Table staged", "table", def.Table, "rows", staged)
	return entry, nil
}

func (p *Pipeline) stageOnce(ctx context.Context, def *entity.Def) (int64, error) {
	extract, err := p.source.Read(def)
	if err != nil {
		return 0, err
	}
	if err := p.staging.Reset(ctx, def); err != nil {
		return 0, err
	}
	if err := p.staging.BulkInsert(ctx, def, extract.Columns, extract.Rows); err != nil {
		return 0, err
	}
	return int64(len(extract.Rows)), nil
}

func (p *Pipeline) transformAll(ctx context.Context, summary *Summary) error {
	for _, kind := range p.tables {
		def, err := p.registry.Get(kind)
		if err != nil {
			return err
		}
		entry, stageErr := p.transformTable(ctx, summary.RunID, def)
		if err := p.record(ctx, summary, entry); err != nil {
			return err
		}
		if stageErr != nil {
			return stageErr
		}
	}
	return nil
}

func (p *Pipeline) transformTable(ctx context.Context, runID uuid.UUID, def *entity.Def) (*RunEntry, error) {
	entry := newEntry(runID, StageTransform, def.Table)
	rules := p.rules.For(def.Kind)
	var processed, valid, invalid int64
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		n, ok, bad, err := p.transformOnce(ctx, def, rules)
		if err != nil {
			logger.FromContext(ctx).Warn("Transform attempt failed", "table", def.Table, "error", err)
			return retry.RetryableError(err)
		}
		processed, valid, invalid = n, ok, bad
		return nil
	})
	entry.Processed, entry.Valid, entry.Invalid = processed, valid, invalid
	finishEntry(entry, err)
	if err != nil {
		return entry, fmt.Errorf("transforming %s: %w", def.Table, err)
	}
	logger.FromContext(ctx).Info("Table transformed",
		"table", def.Table, "rows", processed, "valid", valid, "invalid", invalid)
	return entry, nil
}

func (p *Pipeline) transformOnce(
	ctx context.Context,
	def *entity.Def,
	rules *validate.RuleSet,
) (int64, int64, int64, error) {
	rows, err := p.staging.Rows(ctx, def)
	if err != nil {
		return 0, 0, 0, err
	}
	var valid, invalid int64
	for _, row := range rows {
		TransformRow(def, rules, row)
		if err := p.staging.SaveTransform(ctx, def, row); err != nil {
			return 0, 0, 0, err
		}
		if row.Valid {
			valid++
		} else {
			invalid++
		}
	}
	return int64(len(rows)), valid, invalid, nil
}

func (p *Pipeline) loadAll(ctx context.Context, summary *Summary) error {
	for _, kind := range p.tables {
		def, err := p.registry.Get(kind)
		if err != nil {
			return err
		}
		entry, stageErr := p.loadTable(ctx, summary.RunID, def)
		if err := p.record(ctx, summary, entry); err != nil {
			return err
		}
		if stageErr != nil {
			return stageErr
		}
	}
	return nil
}

// loadTable feeds valid staged rows through the gateway one by one.
// Rejections and duplicate identifiers mark the staged row and the
// batch continues; transport failures abort the stage. Inserts are not
// idempotent, so this stage never retries.
func (p *Pipeline) loadTable(ctx context.Context, runID uuid.UUID, def *entity.Def) (*RunEntry, error) {
	entry := newEntry(runID, StageLoadProd, def.Table)
	rows, err := p.staging.ValidRows(ctx, def)
	if err != nil {
		err = fmt.Errorf("reading valid rows of %s: %w", def.Table, err)
		finishEntry(entry, err)
		return entry, err
	}
	entry.Processed = int64(len(rows))
	for _, row := range rows {
		reason, err := p.loadRow(ctx, def, row)
		if err != nil {
			err = fmt.Errorf("loading %s: %w", def.Table, err)
			finishEntry(entry, err)
			return entry, err
		}
		if reason == "" {
			entry.Valid++
			continue
		}
		if err := p.staging.MarkInvalid(ctx, def, row.ID, reason); err != nil {
			err = fmt.Errorf("flagging staged row %d of %s: %w", row.ID, def.Table, err)
			finishEntry(entry, err)
			return entry, err
		}
		entry.Invalid++
	}
	if err := p.sequences.SyncIDSequence(ctx, def); err != nil {
		err = fmt.Errorf("syncing %s id sequence: %w", def.Table, err)
		finishEntry(entry, err)
		return entry, err
	}
	finishEntry(entry, nil)
	logger.FromContext(ctx).Info("Table loaded",
		"table", def.Table, "rows", entry.Processed, "loaded", entry.Valid, "skipped", entry.Invalid)
	return entry, nil
}

// loadRow returns a non-empty reason when the row was refused and the
// batch should continue.
func (p *Pipeline) loadRow(ctx context.Context, def *entity.Def, row *StagedRow) (string, error) {
	fields, err := ParseRow(def, row)
	if err != nil {
		return err.Error(), nil
	}
	_, err = p.gateway.Apply(ctx, &gateway.Mutation{
		Kind:   def.Kind,
		Op:     gateway.OpInsert,
		Fields: fields,
		Actor:  p.actor,
	})
	if err == nil {
		return "", nil
	}
	var rejection *gateway.Rejection
	if errors.As(err, &rejection) {
		if rejection.Violation != nil {
			return rejection.Violation.Detail, nil
		}
		return rejection.Error(), nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Sprintf("%s already loaded", def.IDColumn), nil
	}
	return "", err
}

func (p *Pipeline) record(ctx context.Context, summary *Summary, entry *RunEntry) error {
	summary.Entries = append(summary.Entries, entry)
	if p.observer != nil {
		p.observer.StageRecorded(ctx, entry)
	}
	if err := p.runLog.Append(ctx, entry); err != nil {
		return fmt.Errorf("recording %s for %s: %w", entry.Stage, entry.Table, err)
	}
	return nil
}

func (p *Pipeline) backoff() retry.Backoff {
	return retry.WithMaxRetries(p.attempts-1, retry.NewExponential(p.delay))
}

func newEntry(runID uuid.UUID, stage Stage, table string) *RunEntry {
	return &RunEntry{
		RunID:     runID,
		Stage:     stage,
		Table:     table,
		StartedAt: time.Now().UTC(),
	}
}

func finishEntry(entry *RunEntry, err error) {
	entry.FinishedAt = time.Now().UTC()
	if err != nil {
		entry.Status = StatusFailed
		detail := err.Error()
		entry.Detail = &detail
		return
	}
	entry.Status = StatusSuccess
}
