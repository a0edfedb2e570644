package core

import (
	"math"
	"strings"
)

// Categories a sports-store rewrite must not clobber: the user already
// filed these purchases under personal care.
var sportsStoreProtected = map[string]bool{
	"Health & Beauty": true,
	"Healthcare":      true,
	"Personal Care":   true,
}

// Categories a foreign-currency match must not clobber, so that food and
// transport bought abroad keep their classification.
var foreignCurrencyProtected = map[string]bool{
	"Salary":               true,
	"Transfers":            true,
	"Credit card payments": true,
	"Securities trades":    true,
	"Savings":              true,
	"Investments":          true,
	"Groceries":            true,
	"Transport":            true,
	"Eating Out":           true,
	"Eating out":           true,
	"Restaurant":           true,
	"Food":                 true,
}

// The holiday-keyword split only reroutes travel-ish transactions.
var travelCategories = map[string]bool{
	"Travel":  true,
	"Holiday": true,
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Categorize rewrites each transaction's raw category through the rule
// layers, in order, and applies the final canonical remap. Transactions
// whose mapped category is the excluded sentinel are dropped from the
// output. Unmatched categories pass through unchanged; no layer ever sees
// the original raw category once a previous layer has rewritten it.
func Categorize(txs []Transaction, rs RuleSet) []CategorizedTransaction {
	out := make([]CategorizedTransaction, 0, len(txs))
	for _, tx := range txs {
		cat := tx.Category

		// 1. Description overrides, declaration order, last match wins.
		for _, ov := range rs.DescriptionOverrides {
			if containsFold(tx.Description, ov.Match) {
				cat = ov.Category
			}
		}

		// 2. Hobby keywords (karate, gardening, photography, ...).
		for _, kw := range rs.HobbiesKeywords {
			if containsFold(tx.Description, kw) {
				cat = HobbiesCategory
			}
		}

		// 3. UK hotel keywords count as holiday spending.
		for _, kw := range rs.UKHotelKeywords {
			if containsFold(tx.Description, kw) {
				cat = HolidayAdjacentCategory
			}
		}

		// 4. Sports stores: cheap purchases are clothing, expensive ones
		// hobby gear. Skipped when the user already filed the purchase
		// under a personal-care category.
		for _, store := range rs.SportsStores {
			if !containsFold(tx.Description, store) || sportsStoreProtected[cat] {
				continue
			}
			if math.Abs(tx.Amount) < SportsStoreThreshold {
				cat = ClothingRawCategory
			} else {
				cat = HobbiesCategory
			}
		}

		// 5. Holiday keywords split travel into holiday spending.
		if travelCategories[cat] {
			for _, kw := range rs.HolidayKeywords {
				if containsFold(tx.Description, kw) {
					cat = HolidayAdjacentCategory
				}
			}
		}

		// 6. Foreign-currency markers usually mean a holiday expense,
		// unless the transaction sits in a protected category.
		for _, pattern := range rs.ForeignCurrencyPatterns {
			if containsFold(tx.Description, pattern) && !foreignCurrencyProtected[cat] {
				cat = HolidayAdjacentCategory
			}
		}

		// 7. Final canonical remap; 8. drop the excluded sentinel.
		mapped := rs.MapCategory(cat)
		if mapped == ExcludedSentinel {
			continue
		}

		ct := CategorizedTransaction{Transaction: tx, MappedCategory: mapped}
		ct.Category = cat
		out = append(out, ct)
	}
	return out
}

// FilterPeriod returns the transactions dated inside the given month.
func FilterPeriod(txs []CategorizedTransaction, p Period) []CategorizedTransaction {
	var out []CategorizedTransaction
	for _, tx := range txs {
		if PeriodOf(tx.Date) == p {
			out = append(out, tx)
		}
	}
	return out
}

// LatestPeriod returns the most recent calendar month present in the set,
// or a zero Period when the set is empty.
func LatestPeriod(txs []CategorizedTransaction) Period {
	var latest Period
	for _, tx := range txs {
		p := PeriodOf(tx.Date)
		if latest.IsZero() || p.Time().After(latest.Time()) {
			latest = p
		}
	}
	return latest
}
