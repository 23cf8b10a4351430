package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&Category{},
		&Product{},
		&ProductImage{},
		&Review{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&PaymentTransaction{},
		&Notification{},
	}
}
