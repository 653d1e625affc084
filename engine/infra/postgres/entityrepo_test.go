package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/infra/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDef(t *testing.T, kind entity.Kind) *entity.Def {
	t.Helper()
	def, err := entity.Catalog().Get(kind)
	require.NoError(t, err)
	return def
}

func TestEntityRepo_GetForUpdate(t *testing.T) {
	t.Run("Should fetch and lock a product row", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		rows := mockPool.NewRows([]string{"product_name", "price", "category_id", "supplier_id"}).
			AddRow("Laptop Pro 15", "1299.99", int64(3), int64(2))
		mockPool.ExpectQuery("SELECT (.+) FROM products WHERE product_id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(rows)
		fields, err := repo.GetForUpdate(ctx, def, 7)
		require.NoError(t, err)
		assert.Equal(t, "Laptop Pro 15", fields["product_name"])
		assert.Equal(t, "1299.99", fields["price"].(decimal.Decimal).StringFixed(2))
		assert.Equal(t, int64(3), fields["category_id"])
		assert.Equal(t, int64(2), fields["supplier_id"])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should read null columns as absent values", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindCustomer)
		registered := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
		rows := mockPool.NewRows([]string{"first_name", "last_name", "email", "registration_date", "city", "state", "zipcode"}).
			AddRow("Ava", "Nguyen", nil, registered, nil, nil, nil)
		mockPool.ExpectQuery("SELECT (.+) FROM customers WHERE customer_id = \\$1 FOR UPDATE").
			WithArgs(int64(12)).
			WillReturnRows(rows)
		fields, err := repo.GetForUpdate(ctx, def, 12)
		require.NoError(t, err)
		assert.Equal(t, "Ava", fields["first_name"])
		assert.Equal(t, registered, fields["registration_date"])
		assert.Contains(t, fields, "email")
		assert.Nil(t, fields["email"])
		assert.Nil(t, fields["city"])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return not found when the row is missing", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		mockPool.ExpectQuery("SELECT (.+) FROM products WHERE product_id = \\$1 FOR UPDATE").
			WithArgs(int64(999)).
			WillReturnError(pgx.ErrNoRows)
		fields, err := repo.GetForUpdate(ctx, def, 999)
		assert.Nil(t, fields)
		assert.True(t, errors.Is(err, gateway.ErrNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEntityRepo_Insert(t *testing.T) {
	t.Run("Should insert a product and return the assigned id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		price := decimal.RequireFromString("1299.99")
		fields := entity.Fields{
			"product_name": "Laptop Pro 15",
			"price":        price,
			"category_id":  int64(3),
			"supplier_id":  int64(2),
		}
		mockPool.ExpectQuery("INSERT INTO products (.+) RETURNING product_id").
			WithArgs("Laptop Pro 15", price, int64(3), int64(2)).
			WillReturnRows(mockPool.NewRows([]string{"product_id"}).AddRow(int64(41)))
		id, err := repo.Insert(ctx, def, fields)
		require.NoError(t, err)
		assert.Equal(t, int64(41), id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should keep a source-assigned id as the first column", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindCategory)
		fields := entity.Fields{
			"category_id":   int64(77),
			"category_name": "Electronics",
		}
		mockPool.ExpectQuery("INSERT INTO categories (.+) RETURNING category_id").
			WithArgs(int64(77), "Electronics").
			WillReturnRows(mockPool.NewRows([]string{"category_id"}).AddRow(int64(77)))
		id, err := repo.Insert(ctx, def, fields)
		require.NoError(t, err)
		assert.Equal(t, int64(77), id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should map foreign key violations to reference errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		fields := entity.Fields{
			"product_name": "Laptop Pro 15",
			"price":        decimal.RequireFromString("1299.99"),
			"category_id":  int64(404),
			"supplier_id":  int64(2),
		}
		mockPool.ExpectQuery("INSERT INTO products").
			WithArgs("Laptop Pro 15", fields["price"], int64(404), int64(2)).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "fk_products_category_id",
			})
		_, err = repo.Insert(ctx, def, fields)
		var refErr *gateway.ReferenceError
		require.True(t, errors.As(err, &refErr))
		assert.Equal(t, "category_id", refErr.Field)
		assert.Equal(t, "fk_products_category_id", refErr.Constraint)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEntityRepo_Update(t *testing.T) {
	t.Run("Should update only the provided columns", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		price := decimal.RequireFromString("1499.00")
		mockPool.ExpectExec("UPDATE products SET price = \\$1 WHERE product_id = \\$2").
			WithArgs(price, int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err = repo.Update(ctx, def, 7, entity.Fields{"price": price})
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should return not found when no row matches", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindProduct)
		mockPool.ExpectExec("UPDATE products SET product_name = \\$1 WHERE product_id = \\$2").
			WithArgs("Laptop Pro 16", int64(999)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.Update(ctx, def, 999, entity.Fields{"product_name": "Laptop Pro 16"})
		assert.True(t, errors.Is(err, gateway.ErrNotFound))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
	t.Run("Should map foreign key violations to reference errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindOrderItem)
		mockPool.ExpectExec("UPDATE order_items SET product_id = \\$1 WHERE order_item_id = \\$2").
			WithArgs(int64(404), int64(5)).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "fk_order_items_product_id",
			})
		err = repo.Update(ctx, def, 5, entity.Fields{"product_id": int64(404)})
		var refErr *gateway.ReferenceError
		require.True(t, errors.As(err, &refErr))
		assert.Equal(t, "product_id", refErr.Field)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEntityRepo_SyncIDSequence(t *testing.T) {
	t.Run("Should advance the sequence past the largest id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		def := mustDef(t, entity.KindCustomer)
		mockPool.ExpectExec("SELECT setval\\(pg_get_serial_sequence\\('customers', 'customer_id'\\)").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		err = repo.SyncIDSequence(ctx, def)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEntityRepo_WithTx(t *testing.T) {
	t.Run("Should return a repository bound to the transaction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewEntityRepo(mockPool)
		ctx := context.Background()
		mockPool.ExpectBegin()
		tx, err := mockPool.Begin(ctx)
		require.NoError(t, err)
		txRepo := repo.WithTx(tx)
		assert.NotNil(t, txRepo)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
