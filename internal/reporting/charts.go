package reporting

import (
	"fmt"
	"regexp"

	"github.com/nxpat/projets-lfs/internal/catalog"
)

// PERow is one sunburst/stacked-bar slice: a (axis, priority) pair with a
// non-zero project count.
type PERow struct {
	Axis     string
	Priority string
	Count    int
}

// PERows extracts the non-zero priority rows of the PE distribution, in
// catalog order, for the hierarchical charts.
func PERows(d *Distribution) []PERow {
	var out []PERow
	for _, e := range d.PE {
		if e.Priority == "" || e.Count == 0 {
			continue
		}
		out = append(out, PERow{Axis: e.Axis, Priority: e.Priority, Count: e.Count})
	}
	return out
}

// pastel is the base qualitative palette, one color per axis.
var pastel = []string{
	"rgb(102, 197, 204)",
	"rgb(246, 207, 113)",
	"rgb(248, 156, 116)",
	"rgb(220, 176, 242)",
	"rgb(135, 197, 95)",
	"rgb(158, 185, 243)",
	"rgb(254, 136, 177)",
	"rgb(201, 219, 116)",
	"rgb(139, 224, 164)",
	"rgb(180, 151, 231)",
}

var rgbRE = regexp.MustCompile(`\d{1,3}`)

// RGBTint lightens an "rgb(r, g, b)" color toward white by the tint level:
// each channel moves a quarter of its remaining headroom per level.
func RGBTint(color string, tint int) string {
	parts := rgbRE.FindAllString(color, 3)
	if len(parts) != 3 {
		return color
	}
	var out [3]int
	for i, s := range parts {
		var c int
		fmt.Sscanf(s, "%d", &c)
		out[i] = c + int(0.25*float64(tint)*float64(255-c)+0.5)
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", out[0], out[1], out[2])
}

// TintPalette returns one color per row of the PE chart: the axis base color
// tinted by the priority's index within its axis, so the stacked segments of
// one axis shade from the base toward white.
func TintPalette(rows []PERow) []string {
	axisColor := map[string]string{}
	for i, axis := range catalog.Axes {
		axisColor[axis] = pastel[i%len(pastel)]
	}
	axisIndex := map[string]int{}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		tint := axisIndex[row.Axis]
		axisIndex[row.Axis]++
		out = append(out, RGBTint(axisColor[row.Axis], tint))
	}
	return out
}
