package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseColor reads "#rgb", "#rrggbb" or "#rrggbbaa". Alpha defaults to 1.
func ParseColor(s string) (*Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return nil, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	alpha := 1.0
	if len(hex) == 8 {
		alpha = float64(v&0xff) / 255
		v >>= 8
	}
	return &Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: alpha,
	}, nil
}
