package divisions

import (
	"strings"
	"testing"
)

func TestValidNormalizesAliases(t *testing.T) {
	allowed := DefaultLadder()
	cases := []struct{ raw, want string }{
		{"6eA", "6eA"},
		{"6e A", "6eA"},
		{"6ème a", "6eA"},
		{"6EME A", "6eA"},
		{"cm1B", "cm1B"},
		{"CM1 B", "cm1B"},
		{"Tle", "Terminale"},
		{"terminale", "Terminale"},
		{"grande section", "gs"},
		{"GS", "gs"},
		{"1ère A", "1eA"},
		{"2nde B", "2eB"},
		{"", ""},
		{"inconnue", ""},
		{"6eC", ""}, // section C absente de l'échelle par défaut
	}
	for _, c := range cases {
		if got := Valid(c.raw, allowed); got != c.want {
			t.Fatalf("Valid(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestValidRestrictedToAllowedList(t *testing.T) {
	allowed := []string{"6eA", "cm2A"}
	if got := Valid("6eB", allowed); got != "" {
		t.Fatalf("6eB must be rejected when only 6eA is open, got %q", got)
	}
	if got := Valid("cm2 a", allowed); got != "cm2A" {
		t.Fatalf("cm2 a must normalize to cm2A, got %q", got)
	}
}

func TestNameDisplay(t *testing.T) {
	cases := []struct{ code, want string }{
		{"6eA", "6e A"},
		{"Terminale", "Terminale"},
		{"cm1B", "CM1 B"},
		{"gs", "GS"},
		{"ps/ms", "PS/MS"},
	}
	for _, c := range cases {
		if got := Name(c.code); got != c.want {
			t.Fatalf("Name(%q) = %q, want %q", c.code, got, c.want)
		}
	}
	if got := Names([]string{"6eA", "cm1B"}, ", "); got != "6e A, CM1 B" {
		t.Fatalf("Names = %q", got)
	}
}

func TestSortFollowsLadder(t *testing.T) {
	codes := []string{"gs", "cm1B", "6eA", "Terminale", "cm1A", "6eB"}
	Sort(codes)
	want := "Terminale,6eA,6eB,cm1A,cm1B,gs"
	if got := strings.Join(codes, ","); got != want {
		t.Fatalf("sorted %q, want %q", got, want)
	}
}

func TestSection(t *testing.T) {
	cases := []struct{ code, want string }{
		{"Terminale", SectionSecondary},
		{"6eB", SectionSecondary},
		{"cp", SectionElementary},
		{"cm2A", SectionElementary},
		{"gs", SectionKindergarten},
		{"ps/ms", SectionKindergarten},
		{"inconnue", ""},
	}
	for _, c := range cases {
		if got := Section(c.code); got != c.want {
			t.Fatalf("Section(%q) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestBySectionGroups(t *testing.T) {
	groups := BySection([]string{"6eA", "cm1B", "gs", "5eA"})
	if len(groups[SectionSecondary]) != 2 {
		t.Fatalf("expected 2 secondary codes, got %v", groups[SectionSecondary])
	}
	if len(groups[SectionElementary]) != 1 || groups[SectionElementary][0] != "cm1B" {
		t.Fatalf("unexpected elementary group %v", groups[SectionElementary])
	}
	if len(groups[SectionKindergarten]) != 1 {
		t.Fatalf("unexpected kindergarten group %v", groups[SectionKindergarten])
	}
}

func TestDefaultLadderShape(t *testing.T) {
	ladder := DefaultLadder()
	if ladder[0] != "Terminale" {
		t.Fatalf("ladder must start at Terminale, got %q", ladder[0])
	}
	for _, code := range ladder {
		if Section(code) == "" {
			t.Fatalf("default ladder contains unknown code %q", code)
		}
	}
	// deux sections par niveau sauf Terminale et gs
	if want := (len(Levels)-2)*2 + 2; len(ladder) != want {
		t.Fatalf("ladder size %d, want %d", len(ladder), want)
	}
}
