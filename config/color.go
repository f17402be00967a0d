package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color is a packed 0xAARRGGBB value.  Zero means transparent, i.e. no
// background fill.
type Color uint32

// Transparent is the no-fill sentinel.
const Transparent Color = 0

// IsTransparent reports whether c is the no-fill sentinel.
func (c Color) IsTransparent() bool { return c == Transparent }

// NRGBA converts c to a color.Color.  The packed channels are straight
// (non-premultiplied) alpha.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		A: uint8(c >> 24),
		R: uint8(c >> 16),
		G: uint8(c >> 8),
		B: uint8(c),
	}
}

func (c Color) String() string { return fmt.Sprintf("#%08X", uint32(c)) }

// ParseColor accepts "#RRGGBB" (opaque), "#AARRGGBB", "transparent" and
// decimal or 0x-prefixed integers.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "transparent"):
		return Transparent, nil
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("config: bad color %q: %w", s, err)
		}
		switch len(hex) {
		case 6:
			return Color(0xFF000000 | uint32(v)), nil
		case 8:
			return Color(v), nil
		}
		return 0, fmt.Errorf("config: bad color %q: want #RRGGBB or #AARRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("config: bad color %q: %w", s, err)
	}
	return Color(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: line %d: color must be a scalar", node.Line)
	}
	v, err := ParseColor(node.Value)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Color) MarshalYAML() (interface{}, error) {
	if c.IsTransparent() {
		return "transparent", nil
	}
	return c.String(), nil
}
