package entity

// Catalog returns the store's entity descriptors in dependency order:
// referenced kinds first so batch loads can respect foreign keys.
func Catalog() *Registry {
	return NewRegistry(
		&Def{
			Kind:     KindCategory,
			Table:    "categories",
			IDColumn: "category_id",
			Fields: []FieldDef{
				{Name: "category_name", Kind: FieldText},
			},
		},
		&Def{
			Kind:     KindSupplier,
			Table:    "suppliers",
			IDColumn: "supplier_id",
			Fields: []FieldDef{
				{Name: "supplier_name", Kind: FieldText},
				{Name: "contact_email", Kind: FieldNullableText},
			},
		},
		&Def{
			Kind:     KindCustomer,
			Table:    "customers",
			IDColumn: "customer_id",
			Fields: []FieldDef{
				{Name: "first_name", Kind: FieldText},
				{Name: "last_name", Kind: FieldText},
				{Name: "email", Kind: FieldNullableText},
				{Name: "registration_date", Kind: FieldDate},
				{Name: "city", Kind: FieldNullableText},
				{Name: "state", Kind: FieldNullableText},
				{Name: "zipcode", Kind: FieldNullableText},
			},
		},
		&Def{
			Kind:     KindProduct,
			Table:    "products",
			IDColumn: "product_id",
			Fields: []FieldDef{
				{Name: "product_name", Kind: FieldText},
				{Name: "price", Kind: FieldDecimal},
				{Name: "category_id", Kind: FieldRef, Ref: KindCategory},
				{Name: "supplier_id", Kind: FieldRef, Ref: KindSupplier},
			},
		},
		&Def{
			Kind:     KindOrder,
			Table:    "orders",
			IDColumn: "order_id",
			Fields: []FieldDef{
				{Name: "customer_id", Kind: FieldRef, Ref: KindCustomer},
				{Name: "order_date", Kind: FieldDate},
				{Name: "total_amount", Kind: FieldDecimal},
			},
		},
		&Def{
			Kind:     KindOrderItem,
			Table:    "order_items",
			IDColumn: "order_item_id",
			Fields: []FieldDef{
				{Name: "order_id", Kind: FieldRef, Ref: KindOrder},
				{Name: "product_id", Kind: FieldRef, Ref: KindProduct},
				{Name: "quantity", Kind: FieldInt},
				{Name: "price_per_unit", Kind: FieldDecimal},
			},
		},
		&Def{
			Kind:     KindReview,
			Table:    "reviews",
			IDColumn: "review_id",
			Fields: []FieldDef{
				{Name: "product_id", Kind: FieldRef, Ref: KindProduct},
				{Name: "customer_id", Kind: FieldRef, Ref: KindCustomer},
				{Name: "rating", Kind: FieldInt},
				{Name: "review_text", Kind: FieldNullableText},
				{Name: "review_date", Kind: FieldDate},
			},
		},
	)
}
