package evaluation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// Rubric criteria are fixed per module; the grader must return exactly
// these names.
var (
	writingCriteria = []string{
		"task_achievement",
		"coherence_cohesion",
		"lexical_resource",
		"grammatical_range",
	}
	speakingCriteria = []string{
		"fluency_coherence",
		"lexical_resource",
		"grammatical_range",
		"pronunciation",
	}
)

// CriteriaFor returns the rubric criterion names for a free-response module.
func CriteriaFor(module models.TestModule) []string {
	if module == models.ModuleSpeaking {
		return speakingCriteria
	}
	return writingCriteria
}

// GradeRequest carries everything the AI service needs to grade one
// free-response artifact.
type GradeRequest struct {
	Module     models.TestModule
	TaskTitle  string
	TaskPrompt string
	TaskNumber int
	Text       string
	Metrics    Metrics
}

// Grader submits a rubric request to an AI grading service and returns the
// raw response text. Parsing and schema validation happen in the pipeline
// so parse failures are classified separately from transport failures.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (string, error)
}

type openaiGrader struct {
	api   *openai.Client
	model string
}

// NewOpenAIGrader returns a Grader backed by an OpenAI-compatible chat
// completion endpoint.
func NewOpenAIGrader(baseURL, apiKey, modelName string) Grader {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openaiGrader{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

func (g *openaiGrader) Grade(ctx context.Context, req GradeRequest) (string, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("grading service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildSystemPrompt(req GradeRequest) string {
	var b strings.Builder

	if req.Module == models.ModuleSpeaking {
		b.WriteString("You are a certified IELTS speaking examiner. ")
		b.WriteString(fmt.Sprintf("Grade the candidate's Part %d response transcript against the official IELTS speaking descriptors.\n\n", req.TaskNumber))
	} else {
		b.WriteString("You are a certified IELTS writing examiner. ")
		b.WriteString(fmt.Sprintf("Grade the candidate's Task %d essay against the official IELTS writing descriptors.\n\n", req.TaskNumber))
	}

	b.WriteString("Score each of these criteria on the 0-9 band scale, in half-band steps:\n")
	for _, c := range CriteriaFor(req.Module) {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with a single JSON object and nothing else, using exactly this schema:\n")
	b.WriteString(`{
  "overall_band": <number>,
  "criteria": [
    {"name": "<criterion>", "band": <number>, "summary": "<one sentence>", "strengths": ["..."], "improvements": ["..."]}
  ],
  "metrics": {"repeated_words": ["..."], "sentence_variety": "<brief note>"},
  "feedback": "<two or three sentences addressed to the candidate>"
}`)
	b.WriteString("\nInclude every criterion exactly once. Do not wrap the JSON in markdown fences.")

	return b.String()
}

func buildUserPrompt(req GradeRequest) string {
	var b strings.Builder

	if req.TaskTitle != "" {
		b.WriteString("Task: ")
		b.WriteString(req.TaskTitle)
		b.WriteString("\n")
	}
	if req.TaskPrompt != "" {
		b.WriteString("Prompt: ")
		b.WriteString(req.TaskPrompt)
		b.WriteString("\n")
	}
	if req.Module == models.ModuleSpeaking && req.Metrics.WordsPerMinute > 0 {
		b.WriteString(fmt.Sprintf("Measured pace: %.0f words per minute.\n", req.Metrics.WordsPerMinute))
	}
	b.WriteString("\nCandidate response:\n")
	b.WriteString(req.Text)

	return b.String()
}
