package models

import (
	"time"

	"gorm.io/datatypes"
)

type TestStatus string

const (
	TestInProgress TestStatus = "in_progress"
	TestCompleted  TestStatus = "completed"
	TestAbandoned  TestStatus = "abandoned"
)

type TestVariant string

const (
	VariantAcademic TestVariant = "academic"
	VariantGeneral  TestVariant = "general"
)

type TestModule string

const (
	ModuleListening TestModule = "listening"
	ModuleReading   TestModule = "reading"
	ModuleWriting   TestModule = "writing"
	ModuleSpeaking  TestModule = "speaking"
)

// ModuleOrder is the fixed section sequence of a full mock test.
var ModuleOrder = []TestModule{ModuleListening, ModuleReading, ModuleWriting, ModuleSpeaking}

// ModuleDurations are the per-section time limits.
var ModuleDurations = map[TestModule]time.Duration{
	ModuleListening: 40 * time.Minute,
	ModuleReading:   60 * time.Minute,
	ModuleWriting:   60 * time.Minute,
	ModuleSpeaking:  14 * time.Minute,
}

// SectionTiming is one entry of the MockTest.SectionTimes audit trail.
// Entries are merged in, never overwritten.
type SectionTiming struct {
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TimeSpent   int        `json:"time_spent,omitempty"` // seconds, as reported by the client
}

// MockTest is the root aggregate for one full simulated exam attempt.
// A row is only ever created in_progress; completed and abandoned are terminal.
type MockTest struct {
	ID      uint        `json:"id" gorm:"primaryKey"`
	OwnerID string      `json:"owner_id" gorm:"not null;index;size:255"`
	Variant TestVariant `json:"variant" gorm:"not null;size:16"`
	Status  TestStatus  `json:"status" gorm:"default:in_progress;index"`

	// Section cursor. CurrentSection is null only once the test is no
	// longer in progress; StartedAt/Deadline are set and cleared together.
	CurrentSection          *TestModule `json:"current_section" gorm:"size:16"`
	CurrentSectionStartedAt *time.Time  `json:"current_section_started_at"`
	CurrentSectionDeadline  *time.Time  `json:"current_section_deadline"`

	// Per-module result references. Speaking may hold up to three
	// sub-results, one per part.
	ListeningResultID *uint          `json:"listening_result_id"`
	ReadingResultID   *uint          `json:"reading_result_id"`
	WritingResultID   *uint          `json:"writing_result_id"`
	SpeakingResultIDs datatypes.JSON `json:"speaking_result_ids" gorm:"type:jsonb"`

	// Per-module bands, 0-9 at 0.5 granularity. Null until the module is
	// scored; free-response bands stay null while evaluation is pending.
	ListeningBand *float64 `json:"listening_band"`
	ReadingBand   *float64 `json:"reading_band"`
	WritingBand   *float64 `json:"writing_band"`
	SpeakingBand  *float64 `json:"speaking_band"`

	// OverallBand is non-null iff Status == completed.
	OverallBand *float64 `json:"overall_band"`

	// SectionTimes maps module name -> SectionTiming, append-only.
	SectionTimes datatypes.JSON `json:"section_times" gorm:"type:jsonb"`

	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NextModule returns the section after m in the fixed order, or "" when m is
// the last one.
func NextModule(m TestModule) TestModule {
	for i, mod := range ModuleOrder {
		if mod == m && i+1 < len(ModuleOrder) {
			return ModuleOrder[i+1]
		}
	}
	return ""
}

type EvaluationStatus string

const (
	EvaluationScored  EvaluationStatus = "scored"
	EvaluationPending EvaluationStatus = "pending"
	EvaluationFailed  EvaluationStatus = "failed"
)

// SectionResult stores one submitted section (or, for speaking, one part).
type SectionResult struct {
	ID      uint       `json:"id" gorm:"primaryKey"`
	TestID  uint       `json:"test_id" gorm:"not null;index"`
	OwnerID string     `json:"owner_id" gorm:"not null;index;size:255"`
	Module  TestModule `json:"module" gorm:"not null;size:16;index"`

	// Part is the speaking part number (1-3); null for other modules.
	Part *int `json:"part,omitempty"`

	ContentID *uint `json:"content_id"`

	// Raw submission: objective answers as a JSON array, or the audio
	// reference/essay text for free-response modules.
	Answers    datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	Transcript *string        `json:"transcript" gorm:"type:text"`

	// Objective correctness summary.
	CorrectCount *int `json:"correct_count"`
	TotalCount   *int `json:"total_count"`

	// Detail holds per-question correctness for objective modules, or the
	// rubric breakdown plus metrics for free-response modules.
	Detail datatypes.JSON `json:"detail" gorm:"type:jsonb"`

	Band             *float64         `json:"band"`
	EvaluationStatus EvaluationStatus `json:"evaluation_status" gorm:"size:16"`
	FailureReason    *string          `json:"failure_reason" gorm:"type:text"`

	TimeSpent int `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
