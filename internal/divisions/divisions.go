// Package divisions maps free-form classroom names to the canonical division
// vocabulary. Used at data-entry validation (project divisions, student
// rosters) and at reporting time.
package divisions

import (
	"sort"
	"strings"
)

// Levels is the grade ladder, from the last secondary year down to
// kindergarten. A canonical division code is a level optionally followed by
// a section letter (A or B), e.g. "6eA", "cm1B", "gs".
var Levels = []string{
	"Terminale",
	"1e", "2e", "3e", "4e", "5e", "6e",
	"cm2", "cm1", "ce2", "ce1", "cp",
	"gs", "ps/ms",
}

// Section names for grouped reporting.
const (
	SectionSecondary    = "secondaire"
	SectionElementary   = "elementaire"
	SectionKindergarten = "maternelle"
)

var sectionOf = map[string]string{
	"Terminale": SectionSecondary,
	"1e":        SectionSecondary,
	"2e":        SectionSecondary,
	"3e":        SectionSecondary,
	"4e":        SectionSecondary,
	"5e":        SectionSecondary,
	"6e":        SectionSecondary,
	"cm2":       SectionElementary,
	"cm1":       SectionElementary,
	"ce2":       SectionElementary,
	"ce1":       SectionElementary,
	"cp":        SectionElementary,
	"gs":        SectionKindergarten,
	"ps/ms":     SectionKindergarten,
}

// free-form aliases accepted on input, already lowercased
var aliases = map[string]string{
	"tle":       "Terminale",
	"term":      "Terminale",
	"terminale": "Terminale",
	"1ere":      "1e",
	"1ère":      "1e",
	"2nde":      "2e",
	"6eme":      "6e",
	"5eme":      "5e",
	"4eme":      "4e",
	"3eme":      "3e",
	"6ème":      "6e",
	"5ème":      "5e",
	"4ème":      "4e",
	"3ème":      "3e",
	"grandesection": "gs", // les espaces sont retirés avant la recherche
}

// All returns every canonical code: each level bare and with A/B sections.
func All() []string {
	out := make([]string, 0, len(Levels)*3)
	for _, l := range Levels {
		for _, s := range []string{"", "A", "B"} {
			out = append(out, l+s)
		}
	}
	return out
}

// DefaultLadder is the division list seeded into a new school year when no
// prior year exists: two sections per level, single classes for Terminale
// and gs.
func DefaultLadder() []string {
	var out []string
	for _, l := range Levels {
		if l == "Terminale" || l == "gs" {
			out = append(out, l)
			continue
		}
		out = append(out, l+"B", l+"A")
	}
	return out
}

// Valid normalizes a free-form division name to a canonical code from the
// allowed list. Returns "" when nothing matches. Matching is case and
// spacing insensitive and tolerates common alias spellings.
func Valid(raw string, allowed []string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// exact match first
	for _, a := range allowed {
		if s == a {
			return a
		}
	}
	folded := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	// split off a trailing section letter
	section := ""
	base := folded
	if n := len(folded); n > 1 {
		last := folded[n-1]
		if last == 'a' || last == 'b' {
			section = strings.ToUpper(string(last))
			base = folded[:n-1]
		}
	}
	if canon, ok := aliases[base]; ok {
		base = strings.ToLower(canon)
	}
	for _, a := range allowed {
		if strings.ToLower(a) == base+strings.ToLower(section) {
			return a
		}
	}
	// alias without section split (e.g. "grande section")
	if canon, ok := aliases[folded]; ok {
		for _, a := range allowed {
			if a == canon {
				return a
			}
		}
	}
	return ""
}

// Name returns the display name of a canonical code, e.g. "cm1B" -> "CM1 B".
func Name(code string) string {
	level, section := splitCode(code)
	if level == "" {
		return code
	}
	display := level
	switch sectionOf[level] {
	case SectionElementary, SectionKindergarten:
		display = strings.ToUpper(level)
	}
	if section == "" {
		return display
	}
	return display + " " + section
}

// Names formats a list of codes with the separator, e.g. "6e A, CM1 B".
func Names(codes []string, sep string) string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, Name(c))
	}
	return strings.Join(out, sep)
}

// Section returns the school section of a canonical code, or "".
func Section(code string) string {
	level, _ := splitCode(code)
	return sectionOf[level]
}

// BySection groups codes by school section, preserving order.
func BySection(codes []string) map[string][]string {
	out := make(map[string][]string)
	for _, c := range codes {
		if s := Section(c); s != "" {
			out[s] = append(out[s], c)
		}
	}
	return out
}

// Sort orders canonical codes by ladder position, then section letter.
// Unknown codes sort last, keeping their relative order.
func Sort(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		return rank(codes[i]) < rank(codes[j])
	})
}

func rank(code string) int {
	level, section := splitCode(code)
	for i, l := range Levels {
		if l == level {
			r := i * 3
			switch section {
			case "A":
				r++
			case "B":
				r += 2
			}
			return r
		}
	}
	return len(Levels) * 3
}

func splitCode(code string) (level, section string) {
	for _, l := range Levels {
		if code == l {
			return l, ""
		}
		if strings.HasPrefix(code, l) {
			rest := code[len(l):]
			if rest == "A" || rest == "B" {
				return l, rest
			}
		}
	}
	return "", ""
}
