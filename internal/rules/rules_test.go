package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_PreservesOverrideOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, UserRulesFile, `{
		"description_overrides": {
			"amazon": "Household",
			"amazon prime": "Subscriptions",
			"zalando": "Clothing"
		}
	}`)

	rs, err := Load(filepath.Join(dir, UserRulesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(rs.DescriptionOverrides) != 3 {
		t.Fatalf("got %d overrides, want 3", len(rs.DescriptionOverrides))
	}
	wantOrder := []string{"amazon", "amazon prime", "zalando"}
	for i, want := range wantOrder {
		if rs.DescriptionOverrides[i].Match != want {
			t.Errorf("override[%d] = %q, want %q", i, rs.DescriptionOverrides[i].Match, want)
		}
	}
}

func TestLoad_AllSections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, UserRulesFile, `{
		"category_mapping": {"Eating out": "Restaurant", "Transfers": "EXCLUDE"},
		"description_overrides": {"netflix": "Subscriptions"},
		"holiday_keywords": ["ryanair"],
		"foreign_currency_patterns": ["kurs:"],
		"hobbies_keywords": ["karate"],
		"uk_hotel_keywords": ["premier inn"],
		"sports_stores": ["xxl sport"]
	}`)

	rs, err := Load(filepath.Join(dir, UserRulesFile))
	if err != nil {
		t.Fatal(err)
	}
	if rs.IsEmpty() {
		t.Fatal("rule set came back empty")
	}
	if got := rs.MapCategory("Eating out"); got != "Restaurant" {
		t.Errorf("MapCategory(Eating out) = %q, want Restaurant", got)
	}
	if got := rs.MapCategory("Unmapped"); got != "Unmapped" {
		t.Errorf("MapCategory pass-through = %q, want Unmapped", got)
	}
	if len(rs.HolidayKeywords) != 1 || rs.HolidayKeywords[0] != "ryanair" {
		t.Errorf("HolidayKeywords = %v", rs.HolidayKeywords)
	}
	if len(rs.SportsStores) != 1 || rs.SportsStores[0] != "xxl sport" {
		t.Errorf("SportsStores = %v", rs.SportsStores)
	}
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, UserRulesFile, `{not json`)
	if _, err := Load(filepath.Join(dir, UserRulesFile)); err == nil {
		t.Error("Load() succeeded on malformed JSON")
	}
}

func TestLoadDir_FallbackChain(t *testing.T) {
	t.Run("prefers user rules over example rules", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, UserRulesFile, `{"hobbies_keywords": ["karate"]}`)
		writeFile(t, dir, ExampleRulesFile, `{"hobbies_keywords": ["golf"]}`)

		rs, err := LoadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(rs.HobbiesKeywords) != 1 || rs.HobbiesKeywords[0] != "karate" {
			t.Errorf("HobbiesKeywords = %v, want [karate]", rs.HobbiesKeywords)
		}
	})

	t.Run("falls back to example rules", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ExampleRulesFile, `{"hobbies_keywords": ["golf"]}`)

		rs, err := LoadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(rs.HobbiesKeywords) != 1 || rs.HobbiesKeywords[0] != "golf" {
			t.Errorf("HobbiesKeywords = %v, want [golf]", rs.HobbiesKeywords)
		}
	})

	t.Run("no files degrades to empty rule set", func(t *testing.T) {
		rs, err := LoadDir(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if !rs.IsEmpty() {
			t.Errorf("rule set = %+v, want empty", rs)
		}
	})

	t.Run("malformed user rules file propagates the error", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, UserRulesFile, `{broken`)
		writeFile(t, dir, ExampleRulesFile, `{"hobbies_keywords": ["golf"]}`)

		if _, err := LoadDir(dir); err == nil {
			t.Error("LoadDir() ignored a malformed user rules file")
		}
	})
}
