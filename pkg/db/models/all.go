package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&Store{},
		&Product{},
		&ProductVariant{},
		&StockRecord{},
		&StockMovement{},
		&Voucher{},
		&Order{},
		&OrderLine{},
		&Payment{},
		&OutboxEvent{},
	}
}
