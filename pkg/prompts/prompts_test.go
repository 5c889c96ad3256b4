package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFillInterpolatesContext(t *testing.T) {
	r := NewRegistry()

	got, err := r.Fill(KindHarms, map[string]string{"observation": "User opened three cabinets"})
	if err != nil {
		t.Fatalf("Fill returned error: %v", err)
	}
	if !strings.Contains(got, "User opened three cabinets") {
		t.Errorf("filled prompt missing observation text: %q", got)
	}
	if strings.Contains(got, "{{") {
		t.Errorf("filled prompt still contains placeholders: %q", got)
	}
}

func TestFillMissingContext(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Fill(KindCriteria, map[string]string{"harm": "Time wasted"}); err == nil {
		t.Fatal("Fill succeeded with a missing placeholder value")
	}
}

func TestFillUnknownKind(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Fill(Kind("bogus"), nil); err == nil {
		t.Fatal("Fill succeeded for an unknown kind")
	}
}

func TestEveryKindHasDefault(t *testing.T) {
	r := NewRegistry()
	for _, k := range Kinds {
		if _, ok := r.Template(k); !ok {
			t.Errorf("kind %q has no default template", k)
		}
	}
}

func TestOverridesMergeOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	content := "harms: |\n  Custom harms prompt for {{observation}}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistryFromFile(path)
	if err != nil {
		t.Fatalf("NewRegistryFromFile: %v", err)
	}

	got, err := r.Fill(KindHarms, map[string]string{"observation": "obs"})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !strings.HasPrefix(got, "Custom harms prompt for obs") {
		t.Errorf("override not applied: %q", got)
	}

	// Unoverridden kinds keep the default.
	if tmpl, _ := r.Template(KindCriteria); tmpl != defaults[KindCriteria] {
		t.Error("unrelated template changed by overrides")
	}
}

func TestOverridesRejectUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	if err := os.WriteFile(path, []byte("bogus: prompt\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewRegistryFromFile(path); err == nil {
		t.Fatal("NewRegistryFromFile accepted an unknown kind")
	}
}
