package evaluation

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// Pipeline orchestrates the evaluation stages for one free-response
// submission. It always returns a terminal Outcome; remote-call errors are
// recorded as Failed outcomes, never returned to the caller.
type Pipeline struct {
	transcriber Transcriber
	grader      Grader
	logger      *slog.Logger
}

func NewPipeline(transcriber Transcriber, grader Grader, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		grader:      grader,
		logger:      logger,
	}
}

// Evaluate runs transcription (speaking only), local analysis, AI rubric
// grading and the metrics merge for a single writing task or speaking part.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) Outcome {
	text := req.EssayText
	var duration float64

	if req.Module == models.ModuleSpeaking {
		if req.Audio == nil {
			return failed(TranscriptionFailed, "")
		}
		tr, err := p.transcriber.Transcribe(ctx, req.Audio, req.AudioFilename)
		if err != nil {
			p.logger.Error("transcription failed",
				"module", req.Module,
				"part", req.SpeakingPart,
				"error", err)
			return failed(TranscriptionFailed, "")
		}
		text = tr.Text
		duration = tr.DurationSeconds
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return failed(TranscriptionFailed, "")
	}

	metrics := Analyze(text, duration)

	taskNumber := req.WritingTask
	if req.Module == models.ModuleSpeaking {
		taskNumber = req.SpeakingPart
	}
	raw, err := p.grader.Grade(ctx, GradeRequest{
		Module:     req.Module,
		TaskTitle:  req.TaskTitle,
		TaskPrompt: req.TaskPrompt,
		TaskNumber: taskNumber,
		Text:       text,
		Metrics:    metrics,
	})
	if err != nil {
		p.logger.Error("grading service call failed",
			"module", req.Module,
			"error", err)
		return failed(GradingUnavailable, text)
	}

	result, ok := parseRubricResult(raw)
	if !ok {
		p.logger.Error("grading response is not valid JSON",
			"module", req.Module,
			"raw", truncate(raw, 500))
		return failed(GradingParseFailed, text)
	}

	clampBands(result)
	merged := mergeMetrics(result.Metrics, metrics)

	return scored(result.OverallBand, result.Criteria, merged, result.Feedback, text)
}

// parseRubricResult parses the grader's response, trying one fenced-block
// extraction if the payload arrived wrapped in a markdown code fence.
func parseRubricResult(raw string) (*RubricResult, bool) {
	var result RubricResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err == nil {
		return &result, true
	}

	inner, ok := extractFencedBlock(raw)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(inner), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// extractFencedBlock pulls the body out of the first ```-fenced block,
// tolerating a language tag after the opening fence.
func extractFencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func clampBands(result *RubricResult) {
	result.OverallBand = clampBand(result.OverallBand)
	for i := range result.Criteria {
		result.Criteria[i].Band = clampBand(result.Criteria[i].Band)
	}
}

func clampBand(b float64) float64 {
	if b < 0 {
		return 0
	}
	if b > 9 {
		return 9
	}
	return b
}

// mergeMetrics folds the local analysis into the AI-returned metrics map.
// Local analysis wins for pace, filler, repetition and variety fields; any
// other keys the AI provided are kept as-is.
func mergeMetrics(ai map[string]any, local Metrics) map[string]any {
	merged := map[string]any{}
	for k, v := range ai {
		merged[k] = v
	}

	merged["word_count"] = local.WordCount
	merged["filler_counts"] = local.FillerCounts
	merged["filler_total"] = local.FillerTotal
	merged["lexical_uniqueness"] = local.LexicalUniqueness
	merged["sentence_count"] = local.SentenceCount
	merged["short_sentences"] = local.ShortSentences
	merged["medium_sentences"] = local.MediumSentences
	merged["long_sentences"] = local.LongSentences
	merged["sentence_variety_score"] = local.SentenceVarietyScore
	merged["has_rhetorical_question"] = local.HasRhetoricalQuestion
	if local.WordsPerMinute > 0 {
		merged["words_per_minute"] = local.WordsPerMinute
		merged["duration_seconds"] = local.DurationSeconds
	}

	return merged
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
