package captions

import (
	"fmt"
	"strings"
)

// Event is one timed, styled unit of on-screen text.
type Event struct {
	Start float64
	End   float64
	Text  string
	Style string
}

// EmphasisFunc renders the active word of a highlight event.
type EmphasisFunc func(word string, p palette) string

// palette is a Style with its colors resolved.
type palette struct {
	style     Style
	base      Color
	highlight Color
}

func newPalette(style Style) palette {
	style = style.WithDefaults()
	return palette{
		style:     style,
		base:      ColorOrWhite(style.BaseColor),
		highlight: ColorOrWhite(style.HighlightColor),
	}
}

var emphases = map[Emphasis]EmphasisFunc{
	EmphasisColor: func(word string, p palette) string {
		return fmt.Sprintf("{\\c%s}%s{\\r}", p.highlight.Override(), word)
	},
	// Thick outline in the highlight color reads as a box behind the word.
	EmphasisBox: func(word string, p palette) string {
		bord := p.style.FontSize / 6
		if bord < 4 {
			bord = 4
		}
		return fmt.Sprintf("{\\3c%s\\bord%d}%s{\\r}", p.highlight.Override(), bord, word)
	},
	EmphasisZoom: func(word string, p palette) string {
		return fmt.Sprintf("{\\c%s\\fscx120\\fscy120}%s{\\r}", p.highlight.Override(), word)
	},
}

// BuildEvents converts sentences into caption events for style.Mode.
func BuildEvents(sentences []Sentence, style Style) ([]Event, error) {
	if err := style.Validate(); err != nil {
		return nil, err
	}
	p := newPalette(style)

	var events []Event
	for _, s := range sentences {
		words := cleanWords(s.Words, p.style.Uppercase)

		switch p.style.Mode {
		case ModeKaraoke:
			if ev, ok := karaokeEvent(s, words); ok {
				events = append(events, ev)
			}
		case ModeHighlight:
			events = append(events, highlightEvents(words, p, emphases[p.style.Emphasis])...)
		case ModePop:
			events = append(events, popEvents(words, p)...)
		default:
			text := sanitize(s.Text, p.style.Uppercase)
			if text == "" {
				text = joinWords(words)
			}
			if text != "" && s.End > s.Start {
				events = append(events, Event{Start: s.Start, End: s.End, Text: text, Style: styleBase})
			}
		}
	}
	return events, nil
}

// karaokeEvent emits one event for the whole sentence. Each word carries a
// \kf fill weight equal to its own duration; silences between words get an
// empty \k span so the fill stays on the narration.
func karaokeEvent(s Sentence, words []Word) (Event, bool) {
	if len(words) == 0 || s.End <= s.Start {
		return Event{}, false
	}

	var sb strings.Builder
	cursor := s.Start
	for i, w := range words {
		if gap := w.Start - cursor; gap >= 0.01 {
			fmt.Fprintf(&sb, "{\\k%d}", centiseconds(gap, 1))
		}
		fmt.Fprintf(&sb, "{\\kf%d}%s", centiseconds(w.End-w.Start, 1), w.Text)
		if i < len(words)-1 {
			sb.WriteByte(' ')
		}
		if w.End > cursor {
			cursor = w.End
		}
	}

	return Event{Start: s.Start, End: s.End, Text: sb.String(), Style: styleKaraoke}, true
}

func highlightEvents(words []Word, p palette, emphasize EmphasisFunc) []Event {
	events := make([]Event, 0, len(words))
	for active, w := range words {
		parts := make([]string, len(words))
		for i, other := range words {
			if i == active {
				parts[i] = emphasize(other.Text, p)
			} else {
				parts[i] = other.Text
			}
		}
		events = append(events, Event{Start: w.Start, End: w.End, Text: strings.Join(parts, " "), Style: styleBase})
	}
	return events
}

// popEvents shows each word alone: fade in, grow to 120%, settle back to
// 100%, all within the word's own interval.
func popEvents(words []Word, p palette) []Event {
	size := p.style.FontSize
	big := int(float64(size) * 1.2)

	events := make([]Event, 0, len(words))
	for _, w := range words {
		ms := int((w.End - w.Start) * 1000)
		fade := clampInt(ms/4, 0, 100)
		grow := clampInt(ms/2, 1, 200)
		settle := clampInt(grow+150, grow, ms)

		text := fmt.Sprintf("{\\fad(%d,%d)\\fs%d\\t(0,%d,\\fs%d)\\t(%d,%d,\\fs%d)}%s",
			fade, fade, size, grow, big, grow, settle, size, w.Text)
		events = append(events, Event{Start: w.Start, End: w.End, Text: text, Style: stylePop})
	}
	return events
}

// cleanWords sanitizes word text and drops words that end up empty or have no duration.
func cleanWords(words []Word, upper bool) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		text := sanitize(w.Text, upper)
		if text == "" || w.End <= w.Start {
			continue
		}
		out = append(out, Word{Start: w.Start, End: w.End, Text: text})
	}
	return out
}

var braceStripper = strings.NewReplacer("{", "", "}", "")

// sanitize removes override-block braces and collapses whitespace.
func sanitize(text string, upper bool) string {
	text = strings.Join(strings.Fields(braceStripper.Replace(text)), " ")
	if upper {
		text = strings.ToUpper(text)
	}
	return text
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
