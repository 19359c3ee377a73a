package database

import "github.com/iliyamo/studycafe-seat-pass/internal/model"

// DefaultCatalog is the pass lineup seeded into an empty database and into
// the memory store.
var DefaultCatalog = []model.PassDefinition{
	{ID: 1, Name: "4-hour pass", PassType: model.PassTypeTime, Duration: 240, Price: 8000},
	{ID: 2, Name: "50-hour pass", PassType: model.PassTypeTimePeriod, Duration: 3000, Price: 90000},
	{ID: 3, Name: "100-hour pass", PassType: model.PassTypeTimePeriod, Duration: 6000, Price: 160000},
	{ID: 4, Name: "1-day pass", PassType: model.PassTypeDay, Duration: 1, Price: 12000},
	{ID: 5, Name: "30-day pass", PassType: model.PassTypeDay, Duration: 30, Price: 150000},
}
