package evaluation

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Transcription is the text and measured duration of one audio recording.
type Transcription struct {
	Text            string
	DurationSeconds float64
}

// Transcriber converts speaking-section audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error)
}

type whisperTranscriber struct {
	api   *openai.Client
	model string
}

// NewWhisperTranscriber returns a Transcriber backed by an OpenAI-compatible
// speech-to-text endpoint.
func NewWhisperTranscriber(baseURL, apiKey, modelName string) Transcriber {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.Whisper1
	}
	return &whisperTranscriber{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error) {
	// verbose_json is required to get the audio duration back.
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   audio,
		FilePath: filename,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription API call: %w", err)
	}

	return &Transcription{
		Text:            resp.Text,
		DurationSeconds: resp.Duration,
	}, nil
}
