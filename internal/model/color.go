package model

import "fmt"

// Color is an RGB triple. Every component is already in range by
// construction; validation happens on ColorInput before a Color exists.
type Color struct {
	R uint8 `json:"r"`
	B uint8 `json:"b"`
	G uint8 `json:"g"`
}

// DefaultRoleColor is the color a role gets when none is supplied.
var DefaultRoleColor = Color{R: 255, B: 255, G: 255}

// ColorInput is a color as it arrives from a request, before range checking.
type ColorInput struct {
	R int `json:"r"`
	B int `json:"b"`
	G int `json:"g"`
}

// Validate range-checks every component against [0,255] and returns the
// narrowed Color.
func (c ColorInput) Validate() (Color, error) {
	for _, v := range []struct {
		name  string
		value int
	}{{"r", c.R}, {"b", c.B}, {"g", c.G}} {
		if v.value < 0 || v.value > 255 {
			return Color{}, fmt.Errorf("color component %s out of range: %d", v.name, v.value)
		}
	}
	return Color{R: uint8(c.R), B: uint8(c.B), G: uint8(c.G)}, nil
}

// PackColor folds a color into the single integer column the roles table
// stores, r in the high byte, then b, then g.
func PackColor(c Color) int {
	return int(c.R)*65536 + int(c.B)*256 + int(c.G)
}

// UnpackColor is the inverse of PackColor.
func UnpackColor(packed int) Color {
	return Color{
		R: uint8(packed / 65536 % 256),
		B: uint8(packed / 256 % 256),
		G: uint8(packed % 256),
	}
}
