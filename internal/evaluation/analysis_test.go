package evaluation

import (
	"math"
	"strings"
	"testing"
)

func TestAnalyzeEmptyTranscript(t *testing.T) {
	m := Analyze("   ", 30)
	if m.WordCount != 0 {
		t.Errorf("WordCount = %d, want 0", m.WordCount)
	}
	if m.SentenceVarietyScore != 0 {
		t.Errorf("SentenceVarietyScore = %v, want 0", m.SentenceVarietyScore)
	}
}

func TestAnalyzeWordsPerMinute(t *testing.T) {
	// 10 words in 30 seconds is 20 wpm.
	text := "one two three four five six seven eight nine ten"
	m := Analyze(text, 30)
	if m.WordCount != 10 {
		t.Fatalf("WordCount = %d, want 10", m.WordCount)
	}
	if math.Abs(m.WordsPerMinute-20) > 1e-9 {
		t.Errorf("WordsPerMinute = %v, want 20", m.WordsPerMinute)
	}

	// No duration means no pace.
	m = Analyze(text, 0)
	if m.WordsPerMinute != 0 {
		t.Errorf("WordsPerMinute without duration = %v, want 0", m.WordsPerMinute)
	}
}

func TestAnalyzeFillerCounts(t *testing.T) {
	text := "Um, I think, you know, the city is, um, quite big. You know what I mean."
	m := Analyze(text, 0)

	if got := m.FillerCounts["um"]; got != 2 {
		t.Errorf(`FillerCounts["um"] = %d, want 2`, got)
	}
	if got := m.FillerCounts["you know"]; got != 2 {
		t.Errorf(`FillerCounts["you know"] = %d, want 2`, got)
	}
	if got := m.FillerCounts["i mean"]; got != 1 {
		t.Errorf(`FillerCounts["i mean"] = %d, want 1`, got)
	}
	if m.FillerTotal != 5 {
		t.Errorf("FillerTotal = %d, want 5", m.FillerTotal)
	}
}

func TestAnalyzeLexicalUniqueness(t *testing.T) {
	m := Analyze("big big big big", 0)
	if m.LexicalUniqueness != 0.25 {
		t.Errorf("LexicalUniqueness = %v, want 0.25", m.LexicalUniqueness)
	}

	m = Analyze("every single word differs here", 0)
	if m.LexicalUniqueness != 1.0 {
		t.Errorf("LexicalUniqueness = %v, want 1.0", m.LexicalUniqueness)
	}
}

func TestAnalyzeSentenceBuckets(t *testing.T) {
	text := "Short one. " +
		"This sentence has exactly nine words in it, honestly. " +
		"This is a very long sentence that keeps going and going with many additional words so that it clearly exceeds the twenty word threshold."
	m := Analyze(text, 0)

	if m.SentenceCount != 3 {
		t.Fatalf("SentenceCount = %d, want 3", m.SentenceCount)
	}
	if m.ShortSentences != 1 || m.MediumSentences != 1 || m.LongSentences != 1 {
		t.Errorf("buckets = %d/%d/%d, want 1/1/1",
			m.ShortSentences, m.MediumSentences, m.LongSentences)
	}
}

func TestAnalyzeRhetoricalQuestion(t *testing.T) {
	without := Analyze("I live in a small town. It is quiet there.", 0)
	if without.HasRhetoricalQuestion {
		t.Error("HasRhetoricalQuestion = true for text without a question")
	}

	with := Analyze("I live in a small town. Is that not the point of living somewhere quiet?", 0)
	if !with.HasRhetoricalQuestion {
		t.Error("HasRhetoricalQuestion = false for text with a question")
	}
	if with.SentenceVarietyScore <= without.SentenceVarietyScore {
		t.Errorf("variety with question (%v) should exceed variety without (%v)",
			with.SentenceVarietyScore, without.SentenceVarietyScore)
	}
}

func TestAnalyzeVarietyScoreBounds(t *testing.T) {
	samples := []string{
		"Yes.",
		"No. No. No. No. No.",
		strings.Repeat("The weather was nice and we walked, and we talked for a while. ", 10),
		"Why do people move to cities? Some seek work, although many simply follow family. " +
			"Others, who value culture, prefer the variety a large city offers. " +
			"Life there is fast. It can be exhausting, but it is rarely dull.",
	}
	for _, text := range samples {
		m := Analyze(text, 0)
		if m.SentenceVarietyScore < 0 || m.SentenceVarietyScore > 100 {
			t.Errorf("SentenceVarietyScore = %v out of [0,100] for %q",
				m.SentenceVarietyScore, text)
		}
	}
}

func TestAnalyzeCompoundDetection(t *testing.T) {
	plain := Analyze("I like tea. I drink it daily.", 0)
	compound := Analyze("I like tea, and I drink it daily. I brew it myself, because shops are expensive.", 0)
	if compound.SentenceVarietyScore <= plain.SentenceVarietyScore {
		t.Errorf("compound text variety (%v) should exceed plain text variety (%v)",
			compound.SentenceVarietyScore, plain.SentenceVarietyScore)
	}
}
