// Package evaluation runs the free-response grading pipeline for writing
// and speaking sections: transcription, local linguistic analysis, and
// AI rubric grading. Every stage failure is folded into a terminal
// Outcome; nothing escapes the pipeline boundary as an error.
package evaluation

import (
	"io"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// FailureReason identifies which pipeline stage failed.
type FailureReason string

const (
	TranscriptionFailed FailureReason = "transcription_failed"
	GradingParseFailed  FailureReason = "grading_parse_failed"
	GradingUnavailable  FailureReason = "grading_unavailable"
)

// CriterionScore is one rubric criterion as graded by the AI service.
type CriterionScore struct {
	Name         string   `json:"name"`
	Band         float64  `json:"band"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// RubricResult is the strict JSON contract the grading service must return.
type RubricResult struct {
	OverallBand float64          `json:"overall_band"`
	Criteria    []CriterionScore `json:"criteria"`
	Metrics     map[string]any   `json:"metrics"`
	Feedback    string           `json:"feedback"`
}

// Outcome is the terminal result of an evaluation run. Status selects which
// fields are meaningful: Scored carries band/rubric/metrics, Failed carries
// the reason, Pending carries neither.
type Outcome struct {
	Status     models.EvaluationStatus
	Band       float64
	Criteria   []CriterionScore
	Metrics    map[string]any
	Feedback   string
	Transcript string
	Reason     FailureReason
}

func scored(band float64, criteria []CriterionScore, metrics map[string]any, feedback, transcript string) Outcome {
	return Outcome{
		Status:     models.EvaluationScored,
		Band:       band,
		Criteria:   criteria,
		Metrics:    metrics,
		Feedback:   feedback,
		Transcript: transcript,
	}
}

func failed(reason FailureReason, transcript string) Outcome {
	return Outcome{
		Status:     models.EvaluationFailed,
		Reason:     reason,
		Transcript: transcript,
	}
}

// Request describes one free-response artifact to evaluate. Writing
// submissions carry EssayText; speaking submissions carry Audio.
type Request struct {
	Module     models.TestModule
	TaskTitle  string
	TaskPrompt string

	// WritingTask is 1 or 2 for writing submissions.
	WritingTask int
	EssayText   string

	// SpeakingPart is 1, 2 or 3 for speaking submissions.
	SpeakingPart  int
	Audio         io.Reader
	AudioFilename string
}
