package model

import "testing"

func TestColorPackUnpackRoundTrip(t *testing.T) {
	cases := []Color{
		{R: 0, B: 0, G: 0},
		{R: 255, B: 255, G: 255},
		{R: 255, B: 0, G: 0},
		{R: 0, B: 255, G: 0},
		{R: 0, B: 0, G: 255},
		{R: 12, B: 200, G: 7},
	}
	for _, c := range cases {
		if got := UnpackColor(PackColor(c)); got != c {
			t.Fatalf("round trip changed %+v into %+v", c, got)
		}
	}
}

func TestColorInputValidate(t *testing.T) {
	if _, err := (ColorInput{R: 255, B: 0, G: 128}).Validate(); err != nil {
		t.Fatalf("in-range color rejected: %v", err)
	}
	for _, in := range []ColorInput{
		{R: 256},
		{B: -1},
		{G: 1000},
	} {
		if _, err := in.Validate(); err == nil {
			t.Fatalf("out-of-range color accepted: %+v", in)
		}
	}
}

func TestDefaultRoleColorIsWhite(t *testing.T) {
	if DefaultRoleColor != (Color{R: 255, B: 255, G: 255}) {
		t.Fatalf("unexpected default: %+v", DefaultRoleColor)
	}
}
