package validate

import (
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/shopspring/decimal"
)

// PriceUpperBound is the inclusive ceiling for product prices.
var PriceUpperBound = decimal.RequireFromString("50000.00")

// RatingUpperBound is the inclusive ceiling for review ratings.
var RatingUpperBound = decimal.NewFromInt(5)

// DefaultRules returns the store's rule sets. Required rules run first,
// then ranges, then reference declarations.
func DefaultRules() Rules {
	zero := decimal.Zero
	return Rules{
		entity.KindCategory: {
			Kind: entity.KindCategory,
			Rules: []Rule{
				&RequiredRule{Field: "category_name"},
			},
		},
		entity.KindSupplier: {
			Kind: entity.KindSupplier,
			Rules: []Rule{
				&RequiredRule{Field: "supplier_name"},
			},
		},
		entity.KindCustomer: {
			Kind: entity.KindCustomer,
			Rules: []Rule{
				&RequiredRule{Field: "first_name"},
				&RequiredRule{Field: "last_name"},
			},
		},
		entity.KindProduct: {
			Kind: entity.KindProduct,
			Rules: []Rule{
				&RequiredRule{Field: "product_name"},
				&RequiredRule{Field: "price"},
				&RangeRule{Field: "price", Min: zero, Max: PriceUpperBound},
				&ReferenceRule{Field: "category_id", Ref: entity.KindCategory},
				&ReferenceRule{Field: "supplier_id", Ref: entity.KindSupplier},
			},
		},
		entity.KindOrder: {
			Kind: entity.KindOrder,
			Rules: []Rule{
				&RequiredRule{Field: "order_date"},
				&RequiredRule{Field: "total_amount"},
				&ReferenceRule{Field: "customer_id", Ref: entity.KindCustomer},
			},
		},
		entity.KindOrderItem: {
			Kind: entity.KindOrderItem,
			Rules: []Rule{
				&RequiredRule{Field: "quantity"},
				&RequiredRule{Field: "price_per_unit"},
				&ReferenceRule{Field: "order_id", Ref: entity.KindOrder},
				&ReferenceRule{Field: "product_id", Ref: entity.KindProduct},
			},
		},
		entity.KindReview: {
			Kind: entity.KindReview,
			Rules: []Rule{
				&RequiredRule{Field: "rating"},
				&RangeRule{Field: "rating", Min: zero, Max: RatingUpperBound},
				&ReferenceRule{Field: "product_id", Ref: entity.KindProduct},
				&ReferenceRule{Field: "customer_id", Ref: entity.KindCustomer},
			},
		},
	}
}
