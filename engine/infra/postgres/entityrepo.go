package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// EntityRepo implements gateway.Repository for every catalog kind,
// building SQL from the entity descriptors instead of one repository
// per table.
type EntityRepo struct {
	db DBInterface
}

var _ gateway.Repository = (*EntityRepo)(nil)

// NewEntityRepo creates a catalog repository over the given connection.
func NewEntityRepo(db DBInterface) *EntityRepo {
	return &EntityRepo{db: db}
}

// GetForUpdate fetches the current row by id, locking it until the
// surrounding transaction ends.
func (r *EntityRepo) GetForUpdate(ctx context.Context, def *entity.Def, id int64) (entity.Fields, error) {
	query, args, err := squirrel.Select(def.FieldNames()...).
		From(def.Table).
		Where(squirrel.Eq{def.IDColumn: id}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	fields, err := scanRow(r.db.QueryRow(ctx, query, args...), def)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", def.Table, id, gateway.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching %s %d: %w", def.Table, id, err)
	}
	return fields, nil
}

// Insert writes a new row with exactly the provided columns and
// returns the assigned id.
func (r *EntityRepo) Insert(ctx context.Context, def *entity.Def, fields entity.Fields) (int64, error) {
	columns := providedColumns(def, fields)
	values := make([]any, len(columns))
	for i, column := range columns {
		values[i] = fields[column]
	}
	query, args, err := squirrel.Insert(def.Table).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING " + def.IDColumn).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert query: %w", err)
	}
	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if refErr := referenceViolation(def, err); refErr != nil {
			return 0, refErr
		}
		return 0, fmt.Errorf("inserting %s: %w", def.Table, err)
	}
	return id, nil
}

// Update sets exactly the provided columns on the row.
func (r *EntityRepo) Update(ctx context.Context, def *entity.Def, id int64, fields entity.Fields) error {
	ub := squirrel.Update(def.Table).PlaceholderFormat(squirrel.Dollar)
	for _, column := range providedColumns(def, fields) {
		ub = ub.Set(column, fields[column])
	}
	query, args, err := ub.Where(squirrel.Eq{def.IDColumn: id}).ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if refErr := referenceViolation(def, err); refErr != nil {
			return refErr
		}
		return fmt.Errorf("updating %s %d: %w", def.Table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", def.Table, id, gateway.ErrNotFound)
	}
	return nil
}

// SyncIDSequence advances the id sequence past the largest present id
// so inserts after a source-identity batch load don't collide.
func (r *EntityRepo) SyncIDSequence(ctx context.Context, def *entity.Def) error {
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
		def.Table, def.IDColumn, def.IDColumn, def.Table,
	)
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("syncing %s id sequence: %w", def.Table, err)
	}
	return nil
}

// WithTx returns a repository instance that uses the given transaction.
func (r *EntityRepo) WithTx(tx pgx.Tx) gateway.Repository {
	return &EntityRepo{db: tx}
}

// providedColumns lists the provided field names in descriptor order,
// the id column first when a batch load carries one.
func providedColumns(def *entity.Def, fields entity.Fields) []string {
	columns := make([]string, 0, len(fields))
	if fields.Has(def.IDColumn) {
		columns = append(columns, def.IDColumn)
	}
	for _, fd := range def.Fields {
		if fields.Has(fd.Name) {
			columns = append(columns, fd.Name)
		}
	}
	return columns
}

// scanRow reads one row's field columns into canonical values: string,
// int64, decimal.Decimal, UTC midnight time.Time, or nil for NULL.
func scanRow(row pgx.Row, def *entity.Def) (entity.Fields, error) {
	count := len(def.Fields)
	targets := make([]any, count)
	texts := make([]pgtype.Text, count)
	ints := make([]pgtype.Int8, count)
	numerics := make([]decimal.NullDecimal, count)
	dates := make([]pgtype.Date, count)
	for i, fd := range def.Fields {
		switch fd.Kind {
		case entity.FieldText, entity.FieldNullableText:
			targets[i] = &texts[i]
		case entity.FieldInt, entity.FieldRef:
			targets[i] = &ints[i]
		case entity.FieldDecimal:
			targets[i] = &numerics[i]
		case entity.FieldDate:
			targets[i] = &dates[i]
		default:
			return nil, fmt.Errorf("field %s has no scan target", fd.Name)
		}
	}
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	fields := make(entity.Fields, count)
	for i, fd := range def.Fields {
		switch fd.Kind {
		case entity.FieldText, entity.FieldNullableText:
			if texts[i].Valid {
				fields[fd.Name] = texts[i].String
			} else {
				fields[fd.Name] = nil
			}
		case entity.FieldInt, entity.FieldRef:
			if ints[i].Valid {
				fields[fd.Name] = ints[i].Int64
			} else {
				fields[fd.Name] = nil
			}
		case entity.FieldDecimal:
			if numerics[i].Valid {
				fields[fd.Name] = numerics[i].Decimal
			} else {
				fields[fd.Name] = nil
			}
		case entity.FieldDate:
			if dates[i].Valid {
				t := dates[i].Time
				fields[fd.Name] = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			} else {
				fields[fd.Name] = nil
			}
		}
	}
	return fields, nil
}

// referenceViolation maps a Postgres foreign key violation to the
// gateway's reference error, deriving the field from the constraint
// naming scheme fk_<table>_<field>.
func referenceViolation(def *entity.Def, err error) *gateway.ReferenceError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return nil
	}
	field := strings.TrimPrefix(pgErr.ConstraintName, "fk_"+def.Table+"_")
	return &gateway.ReferenceError{Field: field, Constraint: pgErr.ConstraintName}
}
