// Package rules loads the layered categorization rule set from JSON
// configuration. A missing configuration degrades to an empty rule set
// (an effective pass-through categorizer) instead of failing.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"fireledger/internal/core"
)

// Conventional rule file names, looked up inside the config directory.
const (
	UserRulesFile    = "user_rules.json"
	ExampleRulesFile = "user_rules.example.json"
)

type fileRules struct {
	CategoryMapping         map[string]string  `json:"category_mapping"`
	DescriptionOverrides    overridesInOrder   `json:"description_overrides"`
	HolidayKeywords         []string           `json:"holiday_keywords"`
	ForeignCurrencyPatterns []string           `json:"foreign_currency_patterns"`
	HobbiesKeywords         []string           `json:"hobbies_keywords"`
	UKHotelKeywords         []string           `json:"uk_hotel_keywords"`
	SportsStores            []string           `json:"sports_stores"`
}

// overridesInOrder decodes a JSON object while preserving the declaration
// order of its keys. Override precedence depends on it: later rules in the
// file win over earlier ones for the same transaction.
type overridesInOrder []core.DescriptionOverride

func (o *overridesInOrder) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("description_overrides: expected JSON object")
	}
	var out []core.DescriptionOverride
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("description_overrides: non-string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("description_overrides[%q]: %w", key, err)
		}
		out = append(out, core.DescriptionOverride{Match: key, Category: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// Load reads a rule file. A malformed file is an error; the degrade-to-empty
// policy lives in LoadDir, which owns the fallback chain.
func Load(path string) (core.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.RuleSet{}, err
	}
	var fr fileRules
	if err := json.Unmarshal(data, &fr); err != nil {
		return core.RuleSet{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return core.RuleSet{
		DescriptionOverrides:    fr.DescriptionOverrides,
		HobbiesKeywords:         fr.HobbiesKeywords,
		UKHotelKeywords:         fr.UKHotelKeywords,
		HolidayKeywords:         fr.HolidayKeywords,
		ForeignCurrencyPatterns: fr.ForeignCurrencyPatterns,
		SportsStores:            fr.SportsStores,
		CategoryMapping:         fr.CategoryMapping,
	}, nil
}

// LoadDir resolves the rule set from a config directory: user_rules.json,
// falling back to user_rules.example.json, falling back to an empty rule
// set. Only a present-but-unparseable file is reported as an error.
func LoadDir(dir string) (core.RuleSet, error) {
	for _, name := range []string{UserRulesFile, ExampleRulesFile} {
		path := filepath.Join(dir, name)
		rs, err := Load(path)
		switch {
		case err == nil:
			if name == ExampleRulesFile {
				slog.Warn("user rules not found, using example rules", "path", path)
			}
			return rs, nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return core.RuleSet{}, err
		}
	}
	slog.Warn("no rules configuration found, categorizer runs as pass-through", "dir", dir)
	return core.RuleSet{}, nil
}
