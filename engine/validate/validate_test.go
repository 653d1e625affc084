package validate_test

import (
	"testing"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/validate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validProduct() entity.Fields {
	return entity.Fields{
		"product_name": "Mechanical Keyboard",
		"price":        price("129.99"),
		"category_id":  int64(3),
		"supplier_id":  int64(7),
	}
}

func TestRangeRule(t *testing.T) {
	rules := validate.DefaultRules()

	t.Run("Should reject a price of zero", func(t *testing.T) {
		fields := validProduct()
		fields["price"] = price("0")

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonOutOfRange, v.Reason)
		assert.Equal(t, "price", v.Field)
	})

	t.Run("Should reject a negative price", func(t *testing.T) {
		fields := validProduct()
		fields["price"] = price("-5.00")

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonOutOfRange, v.Reason)
	})

	t.Run("Should accept the smallest positive price", func(t *testing.T) {
		fields := validProduct()
		fields["price"] = price("0.01")

		assert.Nil(t, rules.For(entity.KindProduct).Check(fields))
	})

	t.Run("Should accept the upper bound exactly", func(t *testing.T) {
		fields := validProduct()
		fields["price"] = price("50000.00")

		assert.Nil(t, rules.For(entity.KindProduct).Check(fields))
	})

	t.Run("Should reject one cent above the upper bound", func(t *testing.T) {
		fields := validProduct()
		fields["price"] = price("50000.01")

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonOutOfRange, v.Reason)
	})

	t.Run("Should bound ratings to five", func(t *testing.T) {
		fields := entity.Fields{
			"product_id":  int64(1),
			"customer_id": int64(2),
			"rating":      int64(6),
			"review_date": time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		}

		v := rules.For(entity.KindReview).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonOutOfRange, v.Reason)
		assert.Equal(t, "rating", v.Field)

		fields["rating"] = int64(5)
		assert.Nil(t, rules.For(entity.KindReview).Check(fields))

		fields["rating"] = int64(0)
		v = rules.For(entity.KindReview).Check(fields)
		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonOutOfRange, v.Reason)
	})
}

func TestRequiredRule(t *testing.T) {
	rules := validate.DefaultRules()

	t.Run("Should reject a missing required field", func(t *testing.T) {
		fields := validProduct()
		delete(fields, "product_name")

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonRequiredFieldMissing, v.Reason)
		assert.Equal(t, "product_name", v.Field)
	})

	t.Run("Should reject an explicit null", func(t *testing.T) {
		fields := validProduct()
		fields["product_name"] = nil

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonRequiredFieldMissing, v.Reason)
	})

	t.Run("Should reject blank-after-trim values", func(t *testing.T) {
		fields := entity.Fields{"first_name": "   ", "last_name": "Lovelace"}

		v := rules.For(entity.KindCustomer).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonRequiredFieldMissing, v.Reason)
		assert.Equal(t, "first_name", v.Field)
	})

	t.Run("Should accept present values", func(t *testing.T) {
		fields := entity.Fields{"first_name": "Ada", "last_name": "Lovelace"}

		assert.Nil(t, rules.For(entity.KindCustomer).Check(fields))
	})
}

func TestRuleSet_Check(t *testing.T) {
	rules := validate.DefaultRules()

	t.Run("Should report only the first violation", func(t *testing.T) {
		// Both the name and the price are bad; required runs first.
		fields := entity.Fields{
			"product_name": "",
			"price":        price("0"),
		}

		v := rules.For(entity.KindProduct).Check(fields)

		require.NotNil(t, v)
		assert.Equal(t, validate.ReasonRequiredFieldMissing, v.Reason)
		assert.Equal(t, "product_name", v.Field)
	})

	t.Run("Should pass kinds without configured rules", func(t *testing.T) {
		var empty *validate.RuleSet

		assert.Nil(t, empty.Check(entity.Fields{"anything": "goes"}))
	})

	t.Run("Should expose declared references for delegation", func(t *testing.T) {
		refs := rules.For(entity.KindProduct).References()

		require.Len(t, refs, 2)
		assert.Equal(t, "category_id", refs[0].Field)
		assert.Equal(t, entity.KindCategory, refs[0].Ref)
		assert.Equal(t, "supplier_id", refs[1].Field)
	})
}
