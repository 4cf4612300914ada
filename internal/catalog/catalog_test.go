package catalog

import (
	"testing"
)

func TestLoad_EmbeddedTable(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := c.Keys()
	if len(keys) != 10 {
		t.Fatalf("expected 10 distortion types, got %d", len(keys))
	}
	if keys[0] != "felaketleştirme" {
		t.Errorf("expected first key felaketleştirme, got %q", keys[0])
	}
	if keys[9] != "meli/malı düşünceleri" {
		t.Errorf("expected last key meli/malı düşünceleri, got %q", keys[9])
	}
	if c.TotalTechniques() != 30 {
		t.Errorf("expected 30 techniques, got %d", c.TotalTechniques())
	}

	for _, e := range c.Entries() {
		if e.Name == "" || e.Description == "" {
			t.Errorf("entry %q missing name or description", e.Key)
		}
		if len(e.Techniques) != 3 {
			t.Errorf("entry %q: expected 3 techniques, got %d", e.Key, len(e.Techniques))
		}
		for _, tech := range e.Techniques {
			if tech.Title == "" || tech.Exercise == "" || tech.Duration == "" || tech.Difficulty == "" {
				t.Errorf("entry %q has incomplete technique %+v", e.Key, tech)
			}
		}
	}
}

func TestLookup_NormalizesAliases(t *testing.T) {
	c := MustLoad()

	e, ok := c.Lookup("Felaketlestirme")
	if !ok {
		t.Fatal("expected felaketlestirme to resolve")
	}
	if e.Name != "Felaketleştirme" {
		t.Errorf("expected name Felaketleştirme, got %q", e.Name)
	}
	if e.Techniques[0].Title != "Olasılık Değerlendirmesi" {
		t.Errorf("unexpected first technique %q", e.Techniques[0].Title)
	}

	if _, ok := c.Lookup("kucultme"); !ok {
		t.Error("expected kucultme to resolve to büyütme/küçültme")
	}
	if _, ok := c.Lookup("öfke"); ok {
		t.Error("expected unknown type to miss")
	}
}

func TestSummary(t *testing.T) {
	c := MustLoad()
	summary := c.Summary()

	if summary["Ya Hep Ya Hiç Düşüncesi"] != 3 {
		t.Errorf("expected 3 techniques for Ya Hep Ya Hiç Düşüncesi, got %d", summary["Ya Hep Ya Hiç Düşüncesi"])
	}
	if summary["-meli/-malı Düşünceleri"] != 3 {
		t.Errorf("expected 3 techniques for -meli/-malı Düşünceleri, got %d", summary["-meli/-malı Düşünceleri"])
	}
}

func TestTechniqueByTitle(t *testing.T) {
	c := MustLoad()

	tech, ok := c.TechniqueByTitle("genelleme", "veri toplama")
	if !ok {
		t.Fatal("expected Veri Toplama under genelleme")
	}
	if tech.Difficulty != "zor" {
		t.Errorf("expected difficulty zor, got %q", tech.Difficulty)
	}

	// Kanıt Toplama exists under two keys; an empty key returns the first in table order.
	tech, ok = c.TechniqueByTitle("", "Kanıt Toplama")
	if !ok {
		t.Fatal("expected Kanıt Toplama somewhere in the catalog")
	}
	if tech.Duration != "15-20 dakika" {
		t.Errorf("expected the felaketleştirme variant, got duration %q", tech.Duration)
	}

	if _, ok := c.TechniqueByTitle("genelleme", ""); ok {
		t.Error("expected empty title to miss")
	}
}

func TestParse_RejectsDuplicateKeys(t *testing.T) {
	data := []byte(`
- key: a
  name: A
- key: a
  name: B
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestParse_RejectsMissingKey(t *testing.T) {
	if _, err := Parse([]byte("- name: A\n")); err == nil {
		t.Fatal("expected missing key error")
	}
}
