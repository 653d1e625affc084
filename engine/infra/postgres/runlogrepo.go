package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aethermart/dataplane/engine/ingest"
)

// RunLogRepo implements ingest.RunLog over the ingest_run_log table.
type RunLogRepo struct {
	db DBInterface
}

var _ ingest.RunLog = (*RunLogRepo)(nil)

// NewRunLogRepo creates a run log store over the given connection.
func NewRunLogRepo(db DBInterface) *RunLogRepo {
	return &RunLogRepo{db: db}
}

// Append records one finished stage of an ingest run.
func (r *RunLogRepo) Append(ctx context.Context, entry *ingest.RunEntry) error {
	if entry == nil {
		return fmt.Errorf("run entry is required")
	}
	query, args, err := squirrel.Insert("ingest_run_log").
		Columns(
			"run_id", "stage", "table_name",
			"records_processed", "records_valid", "records_invalid",
			"started_at", "finished_at", "status", "detail",
		).
		Values(
			entry.RunID, entry.Stage, entry.Table,
			entry.Processed, entry.Valid, entry.Invalid,
			entry.StartedAt, entry.FinishedAt, entry.Status, entry.Detail,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building run log insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending run log entry for %s %s: %w", entry.Stage, entry.Table, err)
	}
	return nil
}
