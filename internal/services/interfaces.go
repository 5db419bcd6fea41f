package services

import (
	"context"
	"io"
	"time"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/evaluation"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

// ===== REQUEST DTOs =====

type CreateTestRequest struct {
	Variant models.TestVariant `json:"variant" validate:"required,test_variant"`
}

type ListTestsRequest struct {
	Status   *models.TestStatus `json:"status"`
	DateFrom *time.Time         `json:"date_from"`
	DateTo   *time.Time         `json:"date_to"`
	Limit    int                `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int                `json:"offset" validate:"omitempty,min=0"`
}

// EssaySubmission is one writing task answer.
type EssaySubmission struct {
	Task int    `json:"task" validate:"required,min=1,max=2"`
	Text string `json:"text" validate:"required"`
}

// AudioPart is one speaking part recording, as received from the upload.
type AudioPart struct {
	Part     int
	Filename string
	Data     io.Reader
}

// SubmitSectionRequest carries one section's submission. Exactly one of
// Answers, Essays or AudioParts is used, depending on the section.
type SubmitSectionRequest struct {
	ContentID *uint `json:"content_id"`

	Answers    []string          `json:"answers"`
	Essays     []EssaySubmission `json:"essays" validate:"omitempty,max=2,dive"`
	AudioParts []AudioPart       `json:"-" validate:"omitempty,max=3"`

	TimeSpentSeconds int `json:"time_spent_seconds" validate:"min=0"`
}

// ===== RESPONSE DTOs =====

// SectionTimingInfo is the advisory timing returned on section start and
// in test summaries. The deadline drives client-side auto-submit only.
type SectionTimingInfo struct {
	Section              models.TestModule `json:"section"`
	StartedAt            time.Time         `json:"started_at"`
	Deadline             time.Time         `json:"deadline"`
	DurationSeconds      int               `json:"duration_seconds"`
	TimeRemainingSeconds int               `json:"time_remaining_seconds"`
	IsOvertime           bool              `json:"is_overtime"`
}

type StartSectionResponse struct {
	Content *models.Content   `json:"content,omitempty"`
	Timing  SectionTimingInfo `json:"timing"`
}

// SectionScore summarizes one submitted section for the submit response.
type SectionScore struct {
	CorrectCount     *int                    `json:"correct_count,omitempty"`
	TotalCount       *int                    `json:"total_count,omitempty"`
	Band             *float64                `json:"band,omitempty"`
	EvaluationStatus models.EvaluationStatus `json:"evaluation_status"`
	FailureReason    *string                 `json:"failure_reason,omitempty"`
}

type SubmitSectionResponse struct {
	Completed      bool              `json:"completed"`
	Score          *SectionScore     `json:"score,omitempty"`
	NextSection    models.TestModule `json:"next_section,omitempty"`
	IsTestComplete bool              `json:"is_test_complete"`
	Status         models.TestStatus `json:"status"`
	OverallBand    *float64          `json:"overall_band,omitempty"`
}

type TestResponse struct {
	Test    *models.MockTest        `json:"test"`
	Timing  *SectionTimingInfo      `json:"timing,omitempty"`
	Results []*models.SectionResult `json:"results,omitempty"`
}

type TestListResponse struct {
	Tests []*models.MockTest `json:"tests"`
	Total int64              `json:"total"`
}

// ===== SERVICE INTERFACES =====

type MockTestService interface {
	Create(ctx context.Context, req *CreateTestRequest, ownerID string) (*TestResponse, error)
	Get(ctx context.Context, testID uint, callerID string) (*TestResponse, error)
	List(ctx context.Context, ownerID string, req *ListTestsRequest) (*TestListResponse, error)
	StartSection(ctx context.Context, testID uint, callerID string, section models.TestModule) (*StartSectionResponse, error)
	SubmitSection(ctx context.Context, testID uint, callerID string, section models.TestModule, req *SubmitSectionRequest) (*SubmitSectionResponse, error)
	Abandon(ctx context.Context, testID uint, callerID string) error
}

// ExportService renders a user's test history as a spreadsheet.
type ExportService interface {
	ExportResults(ctx context.Context, ownerID string, req *ListTestsRequest) ([]byte, error)
}

// Evaluator is the pipeline contract the orchestrator depends on; satisfied
// by *evaluation.Pipeline and by fakes in tests.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) evaluation.Outcome
}

// ServiceManager owns service construction and lifecycle.
type ServiceManager interface {
	Initialize(ctx context.Context) error

	MockTest() MockTestService
	Export() ExportService

	Repository() repositories.Repository

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
