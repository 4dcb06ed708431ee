package captions

import (
	"fmt"
	"strings"
)

// Position is where captions sit on screen.
type Position string

const (
	PositionTop    Position = "top"
	PositionMiddle Position = "middle"
	PositionBottom Position = "bottom"
)

// Alignment maps the position to the ASS numpad alignment (centered column).
func (p Position) Alignment() int {
	switch p {
	case PositionTop:
		return 8
	case PositionMiddle:
		return 5
	default:
		return 2
	}
}

// Mode is the strategy for turning word timing into caption events.
type Mode string

const (
	ModePlain     Mode = "plain"     // one event per sentence
	ModeKaraoke   Mode = "karaoke"   // one event per sentence with a running fill
	ModeHighlight Mode = "highlight" // one event per word, active word emphasized
	ModePop       Mode = "pop"       // one animated event per word, shown alone
)

// Emphasis selects how the active word stands out in ModeHighlight.
type Emphasis string

const (
	EmphasisColor Emphasis = "color"
	EmphasisBox   Emphasis = "box"
	EmphasisZoom  Emphasis = "zoom"
)

// Style is the caller's caption styling choice.
type Style struct {
	FontName            string   `json:"font_name" yaml:"font_name"`
	FontSize            int      `json:"font_size" yaml:"font_size" validate:"omitempty,min=8,max=400"`
	BaseColor           string   `json:"base_color" yaml:"base_color" validate:"omitempty,rgbhex"`
	HighlightColor      string   `json:"highlight_color" yaml:"highlight_color" validate:"omitempty,rgbhex"`
	Position            Position `json:"position" yaml:"position" validate:"omitempty,oneof=top middle bottom"`
	Mode                Mode     `json:"mode" yaml:"mode" validate:"omitempty,oneof=plain karaoke highlight pop"`
	Emphasis            Emphasis `json:"emphasis,omitempty" yaml:"emphasis,omitempty" validate:"omitempty,oneof=color box zoom"`
	Uppercase           bool     `json:"uppercase,omitempty" yaml:"uppercase,omitempty"`
	MaxWordsPerSentence int      `json:"max_words_per_sentence,omitempty" yaml:"max_words_per_sentence,omitempty" validate:"omitempty,min=1,max=50"`
}

var DefaultStyle = Style{
	FontName:            "Arial",
	FontSize:            72,
	BaseColor:           "#FFFFFF",
	HighlightColor:      "#FFD700",
	Position:            PositionBottom,
	Mode:                ModePlain,
	Emphasis:            EmphasisColor,
	MaxWordsPerSentence: 8,
}

// WithDefaults fills unset fields from DefaultStyle.
func (s Style) WithDefaults() Style {
	if s.FontName == "" {
		s.FontName = DefaultStyle.FontName
	}
	if s.FontSize <= 0 {
		s.FontSize = DefaultStyle.FontSize
	}
	if s.BaseColor == "" {
		s.BaseColor = DefaultStyle.BaseColor
	}
	if s.HighlightColor == "" {
		s.HighlightColor = DefaultStyle.HighlightColor
	}
	if s.Position == "" {
		s.Position = DefaultStyle.Position
	}
	if s.Mode == "" {
		s.Mode = DefaultStyle.Mode
	}
	if s.Emphasis == "" {
		s.Emphasis = DefaultStyle.Emphasis
	}
	if s.MaxWordsPerSentence <= 0 {
		s.MaxWordsPerSentence = DefaultStyle.MaxWordsPerSentence
	}
	return s
}

// Validate rejects unknown modes and positions, and font names that would
// break the comma-separated style line. Colors fall back to white at render
// time, matching how providers' loose hex input is treated.
func (s Style) Validate() error {
	if strings.Contains(s.FontName, ",") {
		return fmt.Errorf("font name %q must not contain commas", s.FontName)
	}
	switch s.Mode {
	case "", ModePlain, ModeKaraoke, ModeHighlight, ModePop:
	default:
		return fmt.Errorf("unknown caption mode %q", s.Mode)
	}
	switch s.Position {
	case "", PositionTop, PositionMiddle, PositionBottom:
	default:
		return fmt.Errorf("unknown caption position %q", s.Position)
	}
	switch s.Emphasis {
	case "", EmphasisColor, EmphasisBox, EmphasisZoom:
	default:
		return fmt.Errorf("unknown emphasis %q", s.Emphasis)
	}
	return nil
}

// Style names referenced by events.
const (
	styleBase    = "Base"
	styleKaraoke = "Karaoke"
	stylePop     = "Pop"
)
