package workflow

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nxpat/projets-lfs/internal/divisions"
)

// rosterSep matches the field separators tolerated on paste: tabs, commas,
// or runs of two spaces and more.
var rosterSep = regexp.MustCompile(`\s*\t+\s*|\s*,\s*|\s{2,}`)

var titleCase = cases.Title(language.French)

type rosterLine struct {
	division string // canonical code
	name     string
	first    string
}

// parseRoster normalizes a pasted student list to "Division, Nom, Prénom"
// lines and returns the canonical division set actually present. When the
// project targets a single division, two-field lines (name, firstname) are
// accepted and the division column is filled in.
func parseRoster(text string, chosen, allowed []string) (string, []string, error) {
	var lines []rosterLine
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		fields := rosterSep.Split(raw, -1)
		var line rosterLine
		switch {
		case len(fields) == 2 && len(chosen) == 1:
			line = rosterLine{division: chosen[0], name: fields[0], first: fields[1]}
		case len(fields) == 3:
			canon := divisions.Valid(fields[0], allowed)
			if canon == "" {
				return "", nil, ErrInvalidInput
			}
			line = rosterLine{division: canon, name: fields[1], first: fields[2]}
		default:
			return "", nil, ErrInvalidInput
		}
		line.name = titleCase.String(strings.ToLower(line.name))
		line.first = titleCase.String(strings.ToLower(line.first))
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", nil, ErrInvalidInput
	}

	var divs []string
	for _, line := range lines {
		divs = appendUnique(divs, line.division)
	}
	divisions.Sort(divs)
	order := make(map[string]int, len(divs))
	for i, d := range divs {
		order[d] = i
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if order[lines[i].division] != order[lines[j].division] {
			return order[lines[i].division] < order[lines[j].division]
		}
		if lines[i].name != lines[j].name {
			return lines[i].name < lines[j].name
		}
		return lines[i].first < lines[j].first
	})

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, divisions.Name(line.division)+", "+line.name+", "+line.first)
	}
	return strings.Join(out, "\r\n"), divs, nil
}
