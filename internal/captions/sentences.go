package captions

import (
	"sort"
	"strings"
)

// TimingItem is one entry of the flat timing list produced by a
// speech-to-text provider.
type TimingItem struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
	Type  string  `json:"type,omitempty" yaml:"type,omitempty"` // "word" (default) or "segment"
}

const (
	ItemWord    = "word"
	ItemSegment = "segment"
)

// Word is a single timed word. Start < End.
type Word struct {
	Start float64
	End   float64
	Text  string
}

// Sentence is a timing window over a run of words.
type Sentence struct {
	Start float64
	End   float64
	Text  string
	Words []Word
}

// slack absorbs provider rounding when matching words to segment windows.
const slack = 0.05

// BuildSentences groups a flat timing list into sentences. Segment items
// are sentence windows of their own: a word belongs to the segment whose
// window holds the word's start. Words outside every segment are grouped at
// sentence punctuation or every maxWords words. The result is ordered by
// start time. Segments with no words keep their text and only show up in
// plain mode.
func BuildSentences(items []TimingItem, maxWords int) []Sentence {
	var words []Word
	var segments []TimingItem
	for _, it := range items {
		if it.End <= it.Start {
			continue
		}
		switch it.Type {
		case ItemSegment:
			segments = append(segments, it)
		default:
			words = append(words, Word{Start: it.Start, End: it.End, Text: it.Text})
		}
	}

	sort.SliceStable(words, func(i, j int) bool { return words[i].Start < words[j].Start })
	if len(segments) == 0 {
		return GroupWords(words, maxWords)
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	windows := make([]Sentence, len(segments))
	for i, seg := range segments {
		windows[i] = Sentence{Start: seg.Start, End: seg.End, Text: strings.TrimSpace(seg.Text)}
	}

	var loose []Word
	for _, w := range words {
		if i := windowFor(segments, w.Start); i >= 0 {
			windows[i].Words = append(windows[i].Words, w)
		} else {
			loose = append(loose, w)
		}
	}

	sentences := GroupWords(loose, maxWords)
	for _, s := range windows {
		if s.Text == "" {
			s.Text = joinWords(s.Words)
		}
		sentences = append(sentences, s)
	}
	sort.SliceStable(sentences, func(i, j int) bool { return sentences[i].Start < sentences[j].Start })
	return sentences
}

// windowFor returns the first segment whose window holds t, or -1.
func windowFor(segments []TimingItem, t float64) int {
	for i, seg := range segments {
		if t >= seg.Start-slack && t < seg.End {
			return i
		}
	}
	return -1
}

// GroupWords splits words into sentences at terminal punctuation or after maxWords.
func GroupWords(words []Word, maxWords int) []Sentence {
	if maxWords <= 0 {
		maxWords = DefaultStyle.MaxWordsPerSentence
	}

	var sentences []Sentence
	var current []Word
	flush := func() {
		if len(current) == 0 {
			return
		}
		sentences = append(sentences, Sentence{
			Start: current[0].Start,
			End:   current[len(current)-1].End,
			Text:  joinWords(current),
			Words: current,
		})
		current = nil
	}

	for _, w := range words {
		current = append(current, w)
		text := strings.TrimSpace(w.Text)
		if len(current) >= maxWords || strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
			flush()
		}
	}
	flush()

	return sentences
}

func joinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
