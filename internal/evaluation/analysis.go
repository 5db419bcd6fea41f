package evaluation

import (
	"strings"
	"unicode"
)

// Metrics holds the locally computed linguistic measurements for a
// transcript or essay. These are authoritative over anything the AI
// grader reports for the same fields.
type Metrics struct {
	WordCount             int            `json:"word_count"`
	DurationSeconds       float64        `json:"duration_seconds,omitempty"`
	WordsPerMinute        float64        `json:"words_per_minute,omitempty"`
	FillerCounts          map[string]int `json:"filler_counts"`
	FillerTotal           int            `json:"filler_total"`
	LexicalUniqueness     float64        `json:"lexical_uniqueness"`
	SentenceCount         int            `json:"sentence_count"`
	ShortSentences        int            `json:"short_sentences"`
	MediumSentences       int            `json:"medium_sentences"`
	LongSentences         int            `json:"long_sentences"`
	SentenceVarietyScore  float64        `json:"sentence_variety_score"`
	HasRhetoricalQuestion bool           `json:"has_rhetorical_question"`
}

// Filler words and hedge phrases counted against the speaker. Two-word
// phrases are matched before single tokens so "you know" is not double
// counted as "you" + "know".
var fillerPhrases = []string{
	"you know", "i mean", "kind of", "sort of",
}

var fillerWords = map[string]bool{
	"um": true, "uh": true, "er": true, "ah": true,
	"like": true, "basically": true, "actually": true,
	"literally": true, "well": true, "so": true,
}

// Sentence length buckets, in words.
const (
	shortSentenceMax  = 7
	mediumSentenceMax = 20
)

// Variety score weights. The distribution component rewards closeness to
// a 20/60/20 short/medium/long split.
const (
	weightDistribution = 40.0
	weightOpenings     = 25.0
	weightCompound     = 20.0
	weightRhetorical   = 15.0
)

// Analyze computes linguistic metrics over a transcript. It is a pure
// function: no I/O, never fails, and an empty transcript yields zeroed
// metrics. durationSeconds <= 0 leaves the pace fields at zero.
func Analyze(text string, durationSeconds float64) Metrics {
	m := Metrics{FillerCounts: map[string]int{}}

	words := tokenize(text)
	m.WordCount = len(words)
	if m.WordCount == 0 {
		return m
	}

	if durationSeconds > 0 {
		m.DurationSeconds = durationSeconds
		m.WordsPerMinute = float64(m.WordCount) / (durationSeconds / 60.0)
	}

	m.countFillers(text)
	m.LexicalUniqueness = uniquenessRatio(words)

	sentences := splitSentences(text)
	m.SentenceCount = len(sentences)

	openings := map[string]bool{}
	compound := 0
	for _, s := range sentences {
		sw := tokenize(s.text)
		switch {
		case len(sw) <= shortSentenceMax:
			m.ShortSentences++
		case len(sw) <= mediumSentenceMax:
			m.MediumSentences++
		default:
			m.LongSentences++
		}
		if len(sw) > 0 {
			openings[sw[0]] = true
		}
		if isCompound(s.text) {
			compound++
		}
		if s.question {
			m.HasRhetoricalQuestion = true
		}
	}

	m.SentenceVarietyScore = varietyScore(m, len(openings), compound)
	return m
}

func (m *Metrics) countFillers(text string) {
	normalized := " " + strings.Join(tokenize(text), " ") + " "
	for _, phrase := range fillerPhrases {
		n := strings.Count(normalized, " "+phrase+" ")
		if n > 0 {
			m.FillerCounts[phrase] = n
			m.FillerTotal += n
		}
		// Remove matched phrases so their tokens are not recounted below.
		normalized = strings.ReplaceAll(normalized, " "+phrase+" ", " ")
	}
	for _, w := range strings.Fields(normalized) {
		if fillerWords[w] {
			m.FillerCounts[w]++
			m.FillerTotal++
		}
	}
}

func uniquenessRatio(words []string) float64 {
	seen := map[string]bool{}
	for _, w := range words {
		seen[w] = true
	}
	return float64(len(seen)) / float64(len(words))
}

type sentence struct {
	text     string
	question bool
}

func splitSentences(text string) []sentence {
	var out []sentence
	var b strings.Builder
	flush := func(question bool) {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if s != "" {
			out = append(out, sentence{text: s, question: question})
		}
	}
	for _, r := range text {
		switch r {
		case '.', '!':
			flush(false)
		case '?':
			flush(true)
		default:
			b.WriteRune(r)
		}
	}
	flush(false)
	return out
}

var compoundMarkers = []string{
	", and ", ", but ", ", so ", ", or ",
	" because ", " although ", " whereas ", " while ",
	"; however", ", which ", ", who ",
}

func isCompound(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range compoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func varietyScore(m Metrics, distinctOpenings, compoundCount int) float64 {
	if m.SentenceCount == 0 {
		return 0
	}
	total := float64(m.SentenceCount)

	// Absolute deviation from the 20/60/20 target split; worst case is 160
	// percentage points (everything in one non-medium bucket).
	shortPct := float64(m.ShortSentences) / total * 100
	mediumPct := float64(m.MediumSentences) / total * 100
	longPct := float64(m.LongSentences) / total * 100
	deviation := abs(shortPct-20) + abs(mediumPct-60) + abs(longPct-20)
	distribution := clamp01(1 - deviation/160)

	openingDiversity := float64(distinctOpenings) / total
	compoundRatio := float64(compoundCount) / total

	score := weightDistribution*distribution +
		weightOpenings*openingDiversity +
		weightCompound*compoundRatio
	if m.HasRhetoricalQuestion {
		score += weightRhetorical
	}
	if score > 100 {
		score = 100
	}
	return score
}

// tokenize lowercases and strips punctuation, keeping word-internal
// apostrophes and hyphens ("don't", "well-known").
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(cleaned)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
