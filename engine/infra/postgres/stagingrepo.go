package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/ingest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Rows per INSERT statement when staging an extract.
const stagingChunk = 1000

// StagingRepo implements ingest.Staging over the stg_* mirror tables.
// Staging rows are raw text; types only appear after the transform
// stage rewrites them in canonical form.
type StagingRepo struct {
	db DBInterface
}

var _ ingest.Staging = (*StagingRepo)(nil)

// NewStagingRepo creates a staging store over the given connection.
func NewStagingRepo(db DBInterface) *StagingRepo {
	return &StagingRepo{db: db}
}

// Reset empties the table's staging mirror and restarts its serial ids.
func (r *StagingRepo) Reset(ctx context.Context, def *entity.Def) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", stagingTable(def))
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("truncating %s: %w", stagingTable(def), err)
	}
	return nil
}

// BulkInsert writes raw extract rows in chunks, cells exactly as read.
func (r *StagingRepo) BulkInsert(ctx context.Context, def *entity.Def, columns []string, rows [][]string) error {
	for start := 0; start < len(rows); start += stagingChunk {
		end := min(start+stagingChunk, len(rows))
		ib := squirrel.Insert(stagingTable(def)).
			Columns(columns...).
			PlaceholderFormat(squirrel.Dollar)
		for _, row := range rows[start:end] {
			if len(row) != len(columns) {
				return fmt.Errorf("%s: row has %d cells, want %d", stagingTable(def), len(row), len(columns))
			}
			values := make([]any, len(row))
			for i, cell := range row {
				values[i] = cell
			}
			ib = ib.Values(values...)
		}
		query, args, err := ib.ToSql()
		if err != nil {
			return fmt.Errorf("building staging insert: %w", err)
		}
		if _, err := r.db.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("staging rows into %s: %w", stagingTable(def), err)
		}
	}
	return nil
}

// Rows returns every staged row in insertion order.
func (r *StagingRepo) Rows(ctx context.Context, def *entity.Def) ([]*ingest.StagedRow, error) {
	return r.selectRows(ctx, def, false)
}

// ValidRows returns the staged rows that passed the transform stage.
func (r *StagingRepo) ValidRows(ctx context.Context, def *entity.Def) ([]*ingest.StagedRow, error) {
	return r.selectRows(ctx, def, true)
}

// SaveTransform writes a row's normalized cells and validity flags back.
func (r *StagingRepo) SaveTransform(ctx context.Context, def *entity.Def, row *ingest.StagedRow) error {
	ub := squirrel.Update(stagingTable(def)).PlaceholderFormat(squirrel.Dollar)
	for _, column := range stagingColumns(def) {
		ub = ub.Set(column, row.Values[column])
	}
	query, args, err := ub.
		Set("is_valid", row.Valid).
		Set("error_message", row.Message).
		Where(squirrel.Eq{"stg_id": row.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building staging update: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("saving staged row %d of %s: %w", row.ID, stagingTable(def), err)
	}
	return nil
}

// MarkInvalid flags one staged row with the reason it was refused.
func (r *StagingRepo) MarkInvalid(ctx context.Context, def *entity.Def, id int64, message string) error {
	query, args, err := squirrel.Update(stagingTable(def)).
		Set("is_valid", false).
		Set("error_message", message).
		Where(squirrel.Eq{"stg_id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building staging update: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("flagging staged row %d of %s: %w", id, stagingTable(def), err)
	}
	return nil
}

func (r *StagingRepo) selectRows(ctx context.Context, def *entity.Def, onlyValid bool) ([]*ingest.StagedRow, error) {
	payload := stagingColumns(def)
	columns := append([]string{"stg_id"}, payload...)
	columns = append(columns, "is_valid", "error_message")
	sb := squirrel.Select(columns...).
		From(stagingTable(def)).
		OrderBy("stg_id").
		PlaceholderFormat(squirrel.Dollar)
	if onlyValid {
		sb = sb.Where(squirrel.Eq{"is_valid": true})
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building staging select: %w", err)
	}
	pgRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", stagingTable(def), err)
	}
	defer pgRows.Close()
	var out []*ingest.StagedRow
	for pgRows.Next() {
		row, err := scanStagedRow(pgRows, payload)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", stagingTable(def), err)
		}
		out = append(out, row)
	}
	if err := pgRows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", stagingTable(def), err)
	}
	return out, nil
}

func scanStagedRow(pgRows pgx.Rows, payload []string) (*ingest.StagedRow, error) {
	var id int64
	var isValid bool
	var message pgtype.Text
	texts := make([]pgtype.Text, len(payload))
	targets := make([]any, 0, len(payload)+3)
	targets = append(targets, &id)
	for i := range texts {
		targets = append(targets, &texts[i])
	}
	targets = append(targets, &isValid, &message)
	if err := pgRows.Scan(targets...); err != nil {
		return nil, err
	}
	row := &ingest.StagedRow{
		ID:     id,
		Values: make(map[string]*string, len(payload)),
		Valid:  isValid,
	}
	for i, column := range payload {
		if texts[i].Valid {
			value := texts[i].String
			row.Values[column] = &value
		} else {
			row.Values[column] = nil
		}
	}
	if message.Valid {
		m := message.String
		row.Message = &m
	}
	return row, nil
}

func stagingTable(def *entity.Def) string {
	return "stg_" + def.Table
}

// stagingColumns lists a table's staged payload columns: the id column
// followed by the fields in declaration order.
func stagingColumns(def *entity.Def) []string {
	columns := make([]string, 0, len(def.Fields)+1)
	columns = append(columns, def.IDColumn)
	return append(columns, def.FieldNames()...)
}
