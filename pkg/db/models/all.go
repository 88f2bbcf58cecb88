package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// local sqlite setups and tests.
func All() []any {
	return []any{
		&ComponentMaster{},
		&WorkOrder{},
		&BomLine{},
		&Bin{},
		&BinComponent{},
		&ScaleReading{},
		&PrintJob{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
