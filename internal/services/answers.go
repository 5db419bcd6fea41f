package services

import (
	"encoding/json"
	"strings"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// Objective scoring compares submitted answers against the stored key.
// Key entries are either a scalar string or an ordered list of strings
// (multi-blank questions); comparison is case- and whitespace-insensitive
// with synonym normalization.

type questionDetail struct {
	Index     int    `json:"index"`
	Submitted string `json:"submitted"`
	Correct   bool   `json:"correct"`
}

type objectiveScore struct {
	CorrectCount int
	TotalCount   int
	Detail       []questionDetail
}

// scoreObjective grades submitted answers against an answer key. The key's
// length defines the question count; missing submissions count as wrong.
func scoreObjective(submitted []string, key *models.AnswerKey) (*objectiveScore, error) {
	var expected []json.RawMessage
	if err := json.Unmarshal(key.Answers, &expected); err != nil {
		return nil, err
	}

	score := &objectiveScore{
		TotalCount: len(expected),
		Detail:     make([]questionDetail, 0, len(expected)),
	}

	for i, raw := range expected {
		var given string
		if i < len(submitted) {
			given = submitted[i]
		}

		correct := answerMatches(given, raw)
		if correct {
			score.CorrectCount++
		}
		score.Detail = append(score.Detail, questionDetail{
			Index:     i,
			Submitted: given,
			Correct:   correct,
		})
	}
	return score, nil
}

// answerMatches compares one submitted answer with one key entry. A list
// entry expects the submission's comma-separated parts in the same order.
func answerMatches(given string, keyEntry json.RawMessage) bool {
	var scalar string
	if err := json.Unmarshal(keyEntry, &scalar); err == nil {
		return normalizeAnswer(given) == normalizeAnswer(scalar)
	}

	var list []string
	if err := json.Unmarshal(keyEntry, &list); err != nil {
		return false
	}

	parts := strings.Split(given, ",")
	if len(parts) != len(list) {
		return false
	}
	for i, want := range list {
		if normalizeAnswer(parts[i]) != normalizeAnswer(want) {
			return false
		}
	}
	return true
}

// Accepted synonyms for true/false/not-given style answers, and
// spelled-out numbers commonly written as words.
var answerSynonyms = map[string]string{
	"t": "true", "yes": "true", "y": "true",
	"f": "false", "no": "false", "n": "false",
	"ng": "not given", "not-given": "not given",

	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13",
	"fourteen": "14", "fifteen": "15", "sixteen": "16", "seventeen": "17",
	"eighteen": "18", "nineteen": "19", "twenty": "20",
	"thirty": "30", "forty": "40", "fifty": "50", "sixty": "60",
	"seventy": "70", "eighty": "80", "ninety": "90", "hundred": "100",
}

// normalizeAnswer lowercases, collapses whitespace, and maps synonyms so
// "T", " yes " and "TRUE" all compare equal.
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")

	if canonical, ok := answerSynonyms[s]; ok {
		return canonical
	}

	// Normalize word-by-word so "twenty two" style answers still map
	// their number words.
	words := strings.Fields(s)
	for i, w := range words {
		if canonical, ok := answerSynonyms[w]; ok && isNumberWord(w) {
			words[i] = canonical
		}
	}
	return strings.Join(words, " ")
}

func isNumberWord(w string) bool {
	switch w {
	case "t", "f", "y", "n", "yes", "no", "ng", "not-given":
		return false
	}
	_, ok := answerSynonyms[w]
	return ok
}
