// Package colors holds the trip palette and maps it onto the fixed set of
// Google Calendar event colors.
package colors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
)

type Swatch struct {
	Label string
	Hex   string
}

// Palette is the set of colors offered for trips.
var Palette = []Swatch{
	{"Classic blue", "#1890ff"},
	{"Tiffany", "#13c2c2"},
	{"Violet", "#722ed1"},
	{"Coral red", "#f5222d"},
	{"Sunset orange", "#fa8c16"},
	{"Aurora green", "#52c41a"},
	{"Sakura pink", "#eb2f96"},
	{"Deep sea blue", "#2f54eb"},
	{"Polar night", "#434343"},
	{"Mustard", "#fadb14"},
}

// DefaultTrip is used for trips saved without a color.
const DefaultTrip = "#1890ff"

var categoryHex = map[model.Category]string{
	model.CategoryImmediate: "#ff4d4f",
	model.CategoryImportant: "#faad14",
	model.CategoryReminder:  "#1890ff",
	model.CategoryMemo:      "#8c8c8c",
	model.CategoryImported:  "#722ed1",
}

// Category returns the display color of a task category.
func Category(c model.Category) string {
	if hex, ok := categoryHex[c]; ok {
		return hex
	}
	return categoryHex[model.CategoryMemo]
}

// googleEventColors are the Calendar API event color ids and their hex values.
var googleEventColors = []struct {
	ID  string
	Hex string
}{
	{"1", "#7986cb"},
	{"2", "#33b679"},
	{"3", "#8e24aa"},
	{"4", "#e67c73"},
	{"5", "#f6bf26"},
	{"6", "#f4511e"},
	{"7", "#039be5"},
	{"8", "#616161"},
	{"9", "#3f51b5"},
	{"10", "#0b8043"},
	{"11", "#d50000"},
}

type RGB struct{ R, G, B int }

// ParseHex parses #rrggbb.
func ParseHex(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("color %q is not #rrggbb", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("color %q is not #rrggbb", hex)
	}
	return RGB{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, nil
}

// GoogleColorID returns the event color id closest to hex, or "" when hex
// does not parse.
func GoogleColorID(hex string) string {
	c, err := ParseHex(hex)
	if err != nil {
		return ""
	}
	best, bestDist := "", -1
	for _, gc := range googleEventColors {
		g, _ := ParseHex(gc.Hex)
		dr, dg, db := c.R-g.R, c.G-g.G, c.B-g.B
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			best, bestDist = gc.ID, dist
		}
	}
	return best
}
