package gateway_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aethermart/dataplane/engine/audit"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/validate"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows      map[int64]entity.Fields
	nextID    int64
	insertErr error
	updateErr error
	inserts   int
	updates   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]entity.Fields)}
}

func (r *fakeRepo) GetForUpdate(_ context.Context, def *entity.Def, id int64) (entity.Fields, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", def.Table, id, gateway.ErrNotFound)
	}
	return row.Clone(), nil
}

func (r *fakeRepo) Insert(_ context.Context, def *entity.Def, fields entity.Fields) (int64, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.inserts++
	id, ok := fields[def.IDColumn].(int64)
	if !ok {
		r.nextID++
		id = r.nextID
	}
	row := fields.Clone()
	delete(row, def.IDColumn)
	r.rows[id] = row
	return id, nil
}

func (r *fakeRepo) Update(_ context.Context, _ *entity.Def, id int64, fields entity.Fields) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates++
	r.rows[id] = r.rows[id].Merge(fields)
	return nil
}

func (r *fakeRepo) WithTx(pgx.Tx) gateway.Repository { return r }

type fakeAudits struct {
	records []*audit.Record
}

func (a *fakeAudits) Append(_ context.Context, record *audit.Record) error {
	a.records = append(a.records, record)
	return nil
}

func (a *fakeAudits) WithTx(pgx.Tx) audit.Store { return a }

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

var appliedAt = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	gw     *gateway.Gateway
	repo   *fakeRepo
	audits *fakeAudits
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newFakeRepo()
	audits := &fakeAudits{}
	gw, err := gateway.New(&gateway.Config{
		Registry: entity.Catalog(),
		Repo:     repo,
		Audits:   audits,
		Tx:       fakeTx{},
		Now:      func() time.Time { return appliedAt },
	})
	require.NoError(t, err)
	return &harness{gw: gw, repo: repo, audits: audits}
}

func validProduct() entity.Fields {
	return entity.Fields{
		"product_name": "Walnut Desk",
		"price":        decimal.RequireFromString("349.50"),
		"category_id":  int64(4),
		"supplier_id":  int64(11),
	}
}

func TestGateway_Insert(t *testing.T) {
	t.Run("Should commit a valid insert with one created record", func(t *testing.T) {
		h := newHarness(t)

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpInsert,
			Fields: validProduct(),
			Actor:  "merchant",
		})

		require.NoError(t, err)
		require.NotNil(t, commit)
		assert.Equal(t, int64(1), commit.ID)
		require.Len(t, commit.Records, 1)
		assert.Equal(t, audit.OpCreated, commit.Records[0].Operation)
		assert.Equal(t, appliedAt, commit.Records[0].At)
		assert.Equal(t, commit.Records, h.audits.records)
	})

	t.Run("Should keep a source-assigned id", func(t *testing.T) {
		h := newHarness(t)
		fields := validProduct()
		fields["product_id"] = int64(77)

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpInsert,
			Fields: fields,
			Actor:  "etl",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(77), commit.ID)
		assert.Equal(t, int64(77), commit.Records[0].EntityID)
	})

	t.Run("Should reject an out-of-range price before writing", func(t *testing.T) {
		h := newHarness(t)
		fields := validProduct()
		fields["price"] = decimal.RequireFromString("50000.01")

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpInsert,
			Fields: fields,
			Actor:  "merchant",
		})

		assert.Nil(t, commit)
		var rejection *gateway.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, validate.ReasonOutOfRange, rejection.Violation.Reason)
		assert.Zero(t, h.repo.inserts)
		assert.Empty(t, h.audits.records)
	})

	t.Run("Should translate a foreign key failure into a dangling reference", func(t *testing.T) {
		h := newHarness(t)
		h.repo.insertErr = &gateway.ReferenceError{Field: "category_id", Constraint: "fk_products_category_id"}

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpInsert,
			Fields: validProduct(),
			Actor:  "merchant",
		})

		var rejection *gateway.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, validate.ReasonDanglingReference, rejection.Violation.Reason)
		assert.Equal(t, "category_id", rejection.Violation.Field)
		assert.Contains(t, rejection.Violation.Detail, "missing category row")
		assert.Empty(t, h.audits.records)
	})

	t.Run("Should reject unknown field names", func(t *testing.T) {
		h := newHarness(t)
		fields := validProduct()
		fields["colour"] = "teal"

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpInsert,
			Fields: fields,
			Actor:  "merchant",
		})

		assert.ErrorIs(t, err, entity.ErrUnknownField)
	})

	t.Run("Should refuse mutations with no fields", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:  entity.KindProduct,
			Op:    gateway.OpInsert,
			Actor: "merchant",
		})

		assert.ErrorIs(t, err, gateway.ErrNoFields)
	})
}

func TestGateway_Update(t *testing.T) {
	seed := func(h *harness) {
		h.repo.rows[42] = validProduct()
	}

	t.Run("Should commit a price change with one history record", func(t *testing.T) {
		h := newHarness(t)
		seed(h)

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			ID:     42,
			Fields: entity.Fields{"price": decimal.RequireFromString("399.00")},
			Actor:  "merchant",
		})

		require.NoError(t, err)
		require.Len(t, commit.Records, 1)
		rec := commit.Records[0]
		assert.Equal(t, audit.StreamPriceHistory, rec.Stream)
		assert.Equal(t, "price", rec.Field)
		require.NotNil(t, rec.OldValue)
		assert.Equal(t, "349.50", *rec.OldValue)
		require.NotNil(t, rec.NewValue)
		assert.Equal(t, "399.00", *rec.NewValue)
		assert.True(t, h.repo.rows[42]["price"].(decimal.Decimal).Equal(decimal.RequireFromString("399.00")))
		assert.Equal(t, "Walnut Desk", commit.State["product_name"])
	})

	t.Run("Should validate the merged state, not the patch alone", func(t *testing.T) {
		h := newHarness(t)
		seed(h)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			ID:     42,
			Fields: entity.Fields{"product_name": "   "},
			Actor:  "merchant",
		})

		var rejection *gateway.Rejection
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, validate.ReasonRequiredFieldMissing, rejection.Violation.Reason)
		assert.Zero(t, h.repo.updates)
		assert.Empty(t, h.audits.records)
	})

	t.Run("Should append nothing when no monitored field changed", func(t *testing.T) {
		h := newHarness(t)
		seed(h)

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			ID:     42,
			Fields: entity.Fields{"price": decimal.RequireFromString("349.5000")},
			Actor:  "merchant",
		})

		require.NoError(t, err)
		assert.Empty(t, commit.Records)
		assert.Empty(t, h.audits.records)
		assert.Equal(t, 1, h.repo.updates)
	})

	t.Run("Should require a target id", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			Fields: entity.Fields{"price": decimal.RequireFromString("1.00")},
			Actor:  "merchant",
		})

		assert.ErrorIs(t, err, gateway.ErrMissingID)
	})

	t.Run("Should surface missing rows as not found", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			ID:     999,
			Fields: entity.Fields{"price": decimal.RequireFromString("1.00")},
			Actor:  "merchant",
		})

		assert.ErrorIs(t, err, gateway.ErrNotFound)
	})

	t.Run("Should refuse identity changes", func(t *testing.T) {
		h := newHarness(t)
		seed(h)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindProduct,
			Op:     gateway.OpUpdate,
			ID:     42,
			Fields: entity.Fields{"product_id": int64(43)},
			Actor:  "merchant",
		})

		assert.ErrorIs(t, err, gateway.ErrImmutableID)
	})

	t.Run("Should commit kinds without audit policies silently", func(t *testing.T) {
		h := newHarness(t)
		h.repo.rows[9] = entity.Fields{
			"customer_id":  int64(1),
			"order_date":   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			"total_amount": decimal.RequireFromString("120.00"),
		}

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindOrder,
			Op:     gateway.OpUpdate,
			ID:     9,
			Fields: entity.Fields{"total_amount": decimal.RequireFromString("140.00")},
			Actor:  "support",
		})

		require.NoError(t, err)
		assert.Empty(t, commit.Records)
		assert.Empty(t, h.audits.records)
	})
}

func TestGateway_Delete(t *testing.T) {
	t.Run("Should refuse delete mutations", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:  entity.KindProduct,
			Op:    gateway.OpDelete,
			ID:    42,
			Actor: "merchant",
		})

		assert.ErrorIs(t, err, gateway.ErrDeleteNotSupported)
	})
}

func TestGateway_CustomerAudit(t *testing.T) {
	t.Run("Should fold address updates into one composite record", func(t *testing.T) {
		h := newHarness(t)
		h.repo.rows[7] = entity.Fields{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      "ada@example.com",
			"city":       "Portland",
			"state":      "OR",
			"zipcode":    "97201",
		}

		commit, err := h.gw.Apply(context.Background(), &gateway.Mutation{
			Kind:   entity.KindCustomer,
			Op:     gateway.OpUpdate,
			ID:     7,
			Fields: entity.Fields{"city": "Eugene", "zipcode": "97401", "email": "ada@example.com"},
			Actor:  "support",
		})

		require.NoError(t, err)
		require.Len(t, commit.Records, 1)
		rec := commit.Records[0]
		assert.Equal(t, "address", rec.Field)
		assert.Equal(t, audit.StreamFieldAudit, rec.Stream)
		require.NotNil(t, rec.OldValue)
		assert.Equal(t, "Portland, OR, 97201", *rec.OldValue)
		require.NotNil(t, rec.NewValue)
		assert.Equal(t, "Eugene, OR, 97401", *rec.NewValue)
	})
}
