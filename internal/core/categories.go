package core

// SheetColumns is the fixed, ordered list of canonical categories the
// aggregator produces a column for. The order matches the ledger sheet.
var SheetColumns = []string{
	"Bank, Legal, Tax",
	"Groceries",
	"Transport",
	"Car",
	"Phone, Net, TV",
	"Utilities",
	"Kids",
	"Experiences",
	"Restaurant",
	"Clothing",
	"Household",
	"Hobbies",
	"ATM",
	"Subscriptions",
	"Personal Care",
	"Gifts",
	"Holiday",
}

// Summary bucket memberships. Fixed, not configurable.
var (
	NecessaryColumns = []string{
		"Bank, Legal, Tax", "Groceries", "Transport", "Car",
		"Phone, Net, TV", "Utilities", "Kids",
	}
	DiscretionaryColumns = []string{
		"Experiences", "Restaurant", "Clothing", "Household",
		"Hobbies", "ATM", "Subscriptions", "Personal Care",
	}
	ExcessColumns = []string{"Gifts", "Holiday"}
)

// Internal raw-category tokens written by rule layers before the final
// remap. HolidayAdjacentCategory is expected to be mapped onto "Holiday"
// by the configured category mapping.
const (
	HolidayAdjacentCategory = "Other business costs"
	HobbiesCategory         = "Hobbies"
	ClothingRawCategory     = "Clothing & shoes"
	ExcludedSentinel        = "EXCLUDE"
)

// SportsStoreThreshold splits sports-store purchases: below it they count
// as clothing, at or above it as hobby equipment.
const SportsStoreThreshold = 200.0
