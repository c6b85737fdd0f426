package motd

import "strings"

// Color is a Minecraft colour name ("green") or a "#RRGGBB" hex value.
type Color string

var legacyColors = map[rune]Color{
	'0': "black",
	'1': "dark_blue",
	'2': "dark_green",
	'3': "dark_aqua",
	'4': "dark_red",
	'5': "dark_purple",
	'6': "gold",
	'7': "gray",
	'8': "dark_gray",
	'9': "blue",
	'a': "green",
	'b': "aqua",
	'c': "red",
	'd': "light_purple",
	'e': "yellow",
	'f': "white",
}

var namedColors = map[Color]string{
	"black":              "#000000",
	"dark_blue":          "#0000AA",
	"dark_green":         "#00AA00",
	"dark_aqua":          "#00AAAA",
	"dark_red":           "#AA0000",
	"dark_purple":        "#AA00AA",
	"gold":               "#FFAA00",
	"gray":               "#AAAAAA",
	"dark_gray":          "#555555",
	"blue":               "#5555FF",
	"green":              "#55FF55",
	"aqua":               "#55FFFF",
	"red":                "#FF5555",
	"light_purple":       "#FF55FF",
	"yellow":             "#FFFF55",
	"white":              "#FFFFFF",
	"minecoin_gold":      "#DDD605",
	"material_quartz":    "#E3D4D1",
	"material_iron":      "#CECACA",
	"material_netherite": "#443A3B",
	"material_redstone":  "#971607",
	"material_copper":    "#B4684D",
	"material_gold":      "#DEB12D",
	"material_emerald":   "#11A036",
	"material_diamond":   "#2CBAA8",
	"material_lapis":     "#21497B",
	"material_amethyst":  "#9A5CC6",
}

// ParseColor normalizes a JSON component colour. Unknown names yield "".
func ParseColor(s string) Color {
	s = strings.TrimSpace(s)
	if isHexColor(s) {
		return Color(strings.ToUpper(s))
	}

	c := Color(strings.ToLower(s))
	if _, ok := namedColors[c]; ok {
		return c
	}
	return ""
}

// Hex returns the colour as "#RRGGBB", or "" when unset.
func (c Color) Hex() string {
	if isHexColor(string(c)) {
		return strings.ToUpper(string(c))
	}
	return namedColors[c]
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, ch := range s[1:] {
		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
