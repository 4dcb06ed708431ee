package captions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for anything other than RRGGBB hex (with or without '#').
var ErrInvalidColor = errors.New("invalid hex color")

// Color is an RGB color parsed from hex.
type Color struct {
	R, G, B uint8
}

var White = Color{R: 0xFF, G: 0xFF, B: 0xFF}

// ParseHexColor parses "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorOrWhite parses s and falls back to white when it is not valid hex.
func ColorOrWhite(s string) Color {
	c, err := ParseHexColor(s)
	if err != nil {
		return White
	}
	return c
}

// ASS renders the color as a style-line value. ASS stores channels as
// alpha, blue, green, red: &HAABBGGRR.
func (c Color) ASS() string {
	return fmt.Sprintf("&H00%02X%02X%02X", c.B, c.G, c.R)
}

// Override renders the color for inline tags such as \c and \3c.
func (c Color) Override() string {
	return fmt.Sprintf("&H%02X%02X%02X&", c.B, c.G, c.R)
}
