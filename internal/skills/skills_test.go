package skills_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fernandolim41/picopro-clt/internal/skills"
)

func TestDefault_IsValid(t *testing.T) {
	if err := skills.Default().Validate(); err != nil {
		t.Errorf("Default() graph must validate: %v", err)
	}
}

func TestIsRelated(t *testing.T) {
	g := skills.Default()
	if !g.IsRelated("Cook", "Pastry Chef") {
		t.Error("IsRelated(Cook, Pastry Chef) should be true")
	}
	if g.IsRelated("Cook", "Security") {
		t.Error("IsRelated(Cook, Security) should be false")
	}
	if g.IsRelated("Unknown Skill", "Cook") {
		t.Error("IsRelated on unknown skill should be false")
	}
}

func TestValidate_RejectsBadGraphs(t *testing.T) {
	cases := []struct {
		name  string
		graph skills.Graph
	}{
		{"empty skill name", skills.Graph{"": {"Cook"}}},
		{"empty relation list", skills.Graph{"Cook": {}}},
		{"self relation", skills.Graph{"Cook": {"Cook"}}},
		{"empty related skill", skills.Graph{"Cook": {""}}},
		{"duplicate related skill", skills.Graph{"Cook": {"Chef", "Chef"}}},
	}
	for _, c := range cases {
		if err := c.graph.Validate(); err == nil {
			t.Errorf("%s: Validate() expected error, got nil", c.name)
		}
	}
}

func TestLoadFile_MergesOverDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	content := "Cook:\n  - Grill Cook\nBartender:\n  - Barista\n  - Waiter\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := skills.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// File entry replaces the default entry for Cook.
	if !g.IsRelated("Cook", "Grill Cook") || g.IsRelated("Cook", "Chef") {
		t.Errorf("Cook relations = %v, want file entry to replace default", g.Related("Cook"))
	}
	// New skills are added, default skills untouched by the file survive.
	if !g.IsRelated("Bartender", "Barista") {
		t.Error("Bartender from file missing")
	}
	if !g.IsRelated("Security", "Doorman") {
		t.Error("default Security entry lost in merge")
	}
}

func TestLoadFile_InvalidGraphFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	if err := os.WriteFile(path, []byte("Cook:\n  - Cook\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := skills.LoadFile(path); err == nil {
		t.Error("LoadFile with self-relation expected error, got nil")
	}
}

func TestLoadFile_MissingFileFails(t *testing.T) {
	if _, err := skills.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile on missing file expected error, got nil")
	}
}
