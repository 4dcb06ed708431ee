package captions

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is a complete ASS subtitle script sized to the video canvas.
type Document struct {
	Width  int
	Height int
	Style  Style
	Events []Event
}

// Build turns a provider timing list into a ready-to-write document.
func Build(items []TimingItem, style Style, width, height int) (Document, error) {
	style = style.WithDefaults()
	events, err := BuildEvents(BuildSentences(items, style.MaxWordsPerSentence), style)
	if err != nil {
		return Document{}, err
	}
	return Document{Width: width, Height: height, Style: style, Events: events}, nil
}

const styleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"

const eventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

// WriteTo writes the script: header, styles, then one Dialogue line per event.
func (d Document) WriteTo(w io.Writer) (int64, error) {
	p := newPalette(d.Style)
	black := Color{}

	marginV := d.Height * 115 / 1000
	if p.style.Position == PositionMiddle {
		marginV = 0
	}
	outline := p.style.FontSize / 18
	if outline < 2 {
		outline = 2
	}

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", d.Width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", d.Height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString(styleFormat + "\n")
	writeStyle := func(name string, primary, secondary Color) {
		fmt.Fprintf(&sb, "Style: %s,%s,%d,%s,%s,%s,&H80000000,-1,0,0,0,100,100,0,0,1,%d,0,%d,40,40,%d,1\n",
			name, strings.ReplaceAll(p.style.FontName, ",", ""), p.style.FontSize,
			primary.ASS(), secondary.ASS(), black.ASS(),
			outline, p.style.Position.Alignment(), marginV)
	}
	writeStyle(styleBase, p.base, p.base)
	// \kf fills from SecondaryColour to PrimaryColour.
	writeStyle(styleKaraoke, p.highlight, p.base)
	writeStyle(stylePop, p.base, p.base)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString(eventFormat + "\n")
	for _, ev := range d.Events {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n", Timecode(ev.Start), Timecode(ev.End), ev.Style, ev.Text)
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// WriteFile writes the document to path.
func (d Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ASS file: %w", err)
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write ASS file: %w", err)
	}
	return f.Close()
}

// ReadEvents parses the Dialogue lines of an ASS script.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "Dialogue:")
		if !ok {
			continue
		}
		fields := strings.SplitN(strings.TrimSpace(line), ",", 10)
		if len(fields) != 10 {
			return nil, fmt.Errorf("malformed dialogue line: %q", sc.Text())
		}
		start, err := ParseTimecode(fields[1])
		if err != nil {
			return nil, err
		}
		end, err := ParseTimecode(fields[2])
		if err != nil {
			return nil, err
		}
		events = append(events, Event{Start: start, End: end, Style: fields[3], Text: fields[9]})
	}
	return events, sc.Err()
}
