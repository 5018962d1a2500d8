package energy

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidHex = errors.New("invalid hex color")
	ErrInvalidHSL = errors.New("invalid HSL color, expected format: hsl(H S% L%)")
)

var (
	hexPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	hslPattern = regexp.MustCompile(`^hsl\((\d+(?:\.\d+)?)\s(\d+(?:\.\d+)?)%\s(\d+(?:\.\d+)?)%\)$`)
)

// HSL is a parsed "hsl(H S% L%)" color. H is in degrees, S and L are percentages.
type HSL struct {
	H, S, L float64
}

func (c HSL) String() string {
	return fmt.Sprintf("hsl(%s %s%% %s%%)", trimFloat(c.H), trimFloat(c.S), trimFloat(c.L))
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// jsRound rounds half up, matching how the dashboard rounds on the client.
func jsRound(f float64) float64 {
	return math.Floor(f + 0.5)
}

// HexToHSL converts "#rrggbb" (or "rrggbb", or the 3 digit shorthand) to an
// HSL string with whole-number components.
func HexToHSL(hex string) (string, error) {
	if !hexPattern.MatchString(hex) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHex, hex)
	}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	channel := func(s string) float64 {
		v, _ := strconv.ParseUint(s, 16, 8)
		return float64(v) / 255
	}
	r, g, b := channel(hex[0:2]), channel(hex[2:4]), channel(hex[4:6])

	hi := max(r, g, b)
	lo := min(r, g, b)
	var h, s float64
	l := (hi + lo) / 2

	if hi != lo {
		d := hi - lo
		if l > 0.5 {
			s = d / (2 - hi - lo)
		} else {
			s = d / (hi + lo)
		}
		switch hi {
		case r:
			h = (g - b) / d
			if g < b {
				h += 6
			}
		case g:
			h = (b-r)/d + 2
		default:
			h = (r-g)/d + 4
		}
		h /= 6
	}

	return HSL{
		H: jsRound(h * 360),
		S: jsRound(s * 100),
		L: jsRound(l * 100),
	}.String(), nil
}

// ParseHSL parses and range checks an "hsl(H S% L%)" string.
func ParseHSL(s string) (HSL, error) {
	m := hslPattern.FindStringSubmatch(s)
	if m == nil {
		return HSL{}, fmt.Errorf("%w: %q", ErrInvalidHSL, s)
	}
	// the pattern guarantees these parse
	h, _ := strconv.ParseFloat(m[1], 64)
	sat, _ := strconv.ParseFloat(m[2], 64)
	l, _ := strconv.ParseFloat(m[3], 64)
	if h > 360 || sat > 100 || l > 100 {
		return HSL{}, fmt.Errorf("%w: %q out of range", ErrInvalidHSL, s)
	}
	return HSL{H: h, S: sat, L: l}, nil
}

// IsHSL reports whether s is a valid appliance color.
func IsHSL(s string) bool {
	_, err := ParseHSL(s)
	return err == nil
}

// HSLToHex converts an HSL string to "#rrggbb".
func HSLToHex(s string) (string, error) {
	c, err := ParseHSL(s)
	if err != nil {
		return "", err
	}
	h := math.Mod(c.H, 360) / 60
	sat := c.S / 100
	l := c.L / 100

	chroma := (1 - math.Abs(2*l-1)) * sat
	x := chroma * (1 - math.Abs(math.Mod(h, 2)-1))
	m := l - chroma/2

	var r, g, b float64
	switch {
	case h < 1:
		r, g, b = chroma, x, 0
	case h < 2:
		r, g, b = x, chroma, 0
	case h < 3:
		r, g, b = 0, chroma, x
	case h < 4:
		r, g, b = 0, x, chroma
	case h < 5:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}

	to8 := func(v float64) int {
		return int(math.Min(255, math.Max(0, jsRound((v+m)*255))))
	}
	return fmt.Sprintf("#%02x%02x%02x", to8(r), to8(g), to8(b)), nil
}

// NamedColor is an entry in the appliance color palette.
type NamedColor struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Palette is the set of named colors offered when adding an appliance.
var Palette = []NamedColor{
	{Name: "Light Gray", Value: "hsl(210 40% 96.1%)"},
	{Name: "Mint Green", Value: "hsl(142.1 76.2% 86.3%)"},
	{Name: "Sunny Yellow", Value: "hsl(47.9 95.8% 53.1%)"},
	{Name: "Fiery Red", Value: "hsl(346.8 77.2% 49.8%)"},
	{Name: "Royal Purple", Value: "hsl(262.1 83.3% 57.8%)"},
	{Name: "Sky Blue", Value: "hsl(221.2 83.2% 53.3%)"},
	{Name: "Tangerine", Value: "hsl(22 96% 54%)"},
	{Name: "Emerald", Value: "hsl(160 84% 39%)"},
	{Name: "Magenta", Value: "hsl(320 76% 59%)"},
	{Name: "Gold", Value: "hsl(52 98% 50%)"},
	{Name: "Teal", Value: "hsl(180 82% 38%)"},
	{Name: "Orchid", Value: "hsl(291 64% 42%)"},
}

// ColorName returns the palette name for hsl, or "Custom".
func ColorName(hsl string) string {
	for _, c := range Palette {
		if c.Value == hsl {
			return c.Name
		}
	}
	return "Custom"
}
