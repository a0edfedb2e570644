package core

// DescriptionOverride maps a description substring to a raw category.
// Overrides are applied in declaration order; the last matching rule wins.
type DescriptionOverride struct {
	Match    string
	Category string
}

// RuleSet is the layered categorization configuration. A zero RuleSet is
// valid and turns the categorizer into a pass-through (plus the final
// remap and sentinel exclusion, which always apply).
type RuleSet struct {
	DescriptionOverrides    []DescriptionOverride
	HobbiesKeywords         []string
	UKHotelKeywords         []string
	HolidayKeywords         []string
	ForeignCurrencyPatterns []string
	SportsStores            []string
	CategoryMapping         map[string]string
}

// IsEmpty reports whether no rule layer carries any entries.
func (rs RuleSet) IsEmpty() bool {
	return len(rs.DescriptionOverrides) == 0 &&
		len(rs.HobbiesKeywords) == 0 &&
		len(rs.UKHotelKeywords) == 0 &&
		len(rs.HolidayKeywords) == 0 &&
		len(rs.ForeignCurrencyPatterns) == 0 &&
		len(rs.SportsStores) == 0 &&
		len(rs.CategoryMapping) == 0
}

// MapCategory applies the final canonical remap: mapped name if present,
// otherwise the raw category passes through unchanged.
func (rs RuleSet) MapCategory(raw string) string {
	if mapped, ok := rs.CategoryMapping[raw]; ok {
		return mapped
	}
	return raw
}
