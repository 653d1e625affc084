// Package ingest loads CSV extracts of the store dataset through a
// three stage pipeline: stage raw rows into the staging tables,
// normalize and flag them in place, then feed the valid ones through
// the mutation gateway so batch rows receive the same validation and
// audit treatment as interactive writes.
package ingest

import (
	"context"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/google/uuid"
)

// Stage names one phase of a run.
type Stage string

const (
	StageLoadStaging Stage = "LOAD_STAGING"
	StageTransform   Stage = "TRANSFORM"
	StageLoadProd    Stage = "LOAD_PROD"
)

// Status is the outcome of one stage on one table.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// RunEntry is one run-log line: what a single stage did to a single
// table.
type RunEntry struct {
	RunID      uuid.UUID
	Stage      Stage
	Table      string
	Processed  int64
	Valid      int64
	Invalid    int64
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Detail     *string
}

// Extract is the raw content of one table's CSV file: a header row and
// string cells exactly as read.
type Extract struct {
	Columns []string
	Rows    [][]string
}

// StagedRow is one staging-table row. Values maps payload columns to
// their nullable text content.
type StagedRow struct {
	ID      int64
	Values  map[string]*string
	Valid   bool
	Message *string
}

// Reader supplies raw table extracts.
type Reader interface {
	Read(def *entity.Def) (*Extract, error)
}

// Staging is the raw-row store the pipeline loads into and reads back.
type Staging interface {
	Reset(ctx context.Context, def *entity.Def) error
	BulkInsert(ctx context.Context, def *entity.Def, columns []string, rows [][]string) error
	Rows(ctx context.Context, def *entity.Def) ([]*StagedRow, error)
	ValidRows(ctx context.Context, def *entity.Def) ([]*StagedRow, error)
	SaveTransform(ctx context.Context, def *entity.Def, row *StagedRow) error
	MarkInvalid(ctx context.Context, def *entity.Def, id int64, message string) error
}

// RunLog records run entries.
type RunLog interface {
	Append(ctx context.Context, entry *RunEntry) error
}

// SequenceSyncer realigns serial id sequences after a load that
// carried source-assigned identifiers.
type SequenceSyncer interface {
	SyncIDSequence(ctx context.Context, def *entity.Def) error
}

// Gateway is the mutation entry point valid rows are loaded through.
type Gateway interface {
	Apply(ctx context.Context, mutation *gateway.Mutation) (*gateway.Commit, error)
}

// Observer sees every run entry as it is recorded. Implementations
// must not block.
type Observer interface {
	StageRecorded(ctx context.Context, entry *RunEntry)
}
