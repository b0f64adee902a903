package models

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Account{},
		&Address{},
		&Product{},
		&Variant{},
		&Cart{},
		&CartLine{},
		&Order{},
		&OrderLine{},
	}
}
