package captions

import (
	"errors"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in       string
		ass      string
		override string
	}{
		{"#FFFFFF", "&H00FFFFFF", "&HFFFFFF&"},
		{"FF0000", "&H000000FF", "&H0000FF&"},
		{"#00ff00", "&H0000FF00", "&H00FF00&"},
		{"#1E90FF", "&H00FF901E", "&HFF901E&"},
		{"  #123456 ", "&H00563412", "&H563412&"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseHexColor(tt.in)
			if err != nil {
				t.Fatalf("ParseHexColor(%q): %v", tt.in, err)
			}
			if got := c.ASS(); got != tt.ass {
				t.Errorf("ASS() = %s, want %s", got, tt.ass)
			}
			if got := c.Override(); got != tt.override {
				t.Errorf("Override() = %s, want %s", got, tt.override)
			}
		})
	}
}

func TestParseHexColorInvalid(t *testing.T) {
	for _, in := range []string{"", "#FFF", "#GGGGGG", "12345", "#1234567", "red"} {
		if _, err := ParseHexColor(in); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseHexColor(%q) err = %v, want ErrInvalidColor", in, err)
		}
	}
}

func TestColorOrWhite(t *testing.T) {
	if got := ColorOrWhite("nope"); got != White {
		t.Fatalf("ColorOrWhite(nope) = %+v, want white", got)
	}
	if got := ColorOrWhite("#000000"); got != (Color{}) {
		t.Fatalf("ColorOrWhite(#000000) = %+v, want black", got)
	}
}
