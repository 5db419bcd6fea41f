package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

func inProgressTest(section models.TestModule) *models.MockTest {
	return &models.MockTest{
		ID:             1,
		OwnerID:        "user-1",
		Variant:        models.VariantAcademic,
		Status:         models.TestInProgress,
		CurrentSection: &section,
	}
}

func TestStartSectionSetsDeadline(t *testing.T) {
	test := inProgressTest(models.ModuleListening)
	now := time.Now()

	if err := startSection(test, models.ModuleListening, now); err != nil {
		t.Fatalf("startSection() error = %v", err)
	}
	if test.CurrentSectionStartedAt == nil || !test.CurrentSectionStartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", test.CurrentSectionStartedAt, now)
	}
	wantDeadline := now.Add(40 * time.Minute)
	if test.CurrentSectionDeadline == nil || !test.CurrentSectionDeadline.Equal(wantDeadline) {
		t.Errorf("Deadline = %v, want %v", test.CurrentSectionDeadline, wantDeadline)
	}

	var times map[models.TestModule]models.SectionTiming
	if err := json.Unmarshal(test.SectionTimes, &times); err != nil {
		t.Fatalf("SectionTimes unmarshal: %v", err)
	}
	if times[models.ModuleListening].StartedAt == nil {
		t.Error("section times missing listening start")
	}
}

func TestStartSectionGuards(t *testing.T) {
	test := inProgressTest(models.ModuleReading)
	if err := startSection(test, models.ModuleWriting, time.Now()); !errors.Is(err, ErrWrongSection) {
		t.Errorf("out-of-order start error = %v, want ErrWrongSection", err)
	}

	test.Status = models.TestAbandoned
	if err := startSection(test, models.ModuleReading, time.Now()); !errors.Is(err, ErrInvalidTestState) {
		t.Errorf("abandoned start error = %v, want ErrInvalidTestState", err)
	}
}

func TestCompleteSectionAdvances(t *testing.T) {
	test := inProgressTest(models.ModuleListening)
	now := time.Now()
	_ = startSection(test, models.ModuleListening, now)

	next, completed, err := completeSection(test, models.ModuleListening, now.Add(30*time.Minute), 1800)
	if err != nil {
		t.Fatalf("completeSection() error = %v", err)
	}
	if completed {
		t.Fatal("completed = true after first section")
	}
	if next != models.ModuleReading {
		t.Errorf("next = %s, want reading", next)
	}
	if test.CurrentSection == nil || *test.CurrentSection != models.ModuleReading {
		t.Errorf("CurrentSection = %v, want reading", test.CurrentSection)
	}
	// The next section must be explicitly started.
	if test.CurrentSectionStartedAt != nil || test.CurrentSectionDeadline != nil {
		t.Error("timing fields should be cleared between sections")
	}

	var times map[models.TestModule]models.SectionTiming
	_ = json.Unmarshal(test.SectionTimes, &times)
	entry := times[models.ModuleListening]
	if entry.StartedAt == nil || entry.CompletedAt == nil || entry.TimeSpent != 1800 {
		t.Errorf("listening timing entry = %+v, want merged start+completion", entry)
	}
}

func TestCompleteFinalSection(t *testing.T) {
	test := inProgressTest(models.ModuleSpeaking)
	now := time.Now()
	_ = startSection(test, models.ModuleSpeaking, now)

	next, completed, err := completeSection(test, models.ModuleSpeaking, now.Add(14*time.Minute), 840)
	if err != nil {
		t.Fatalf("completeSection() error = %v", err)
	}
	if !completed || next != "" {
		t.Errorf("(next, completed) = (%q, %v), want (\"\", true)", next, completed)
	}
	if test.Status != models.TestCompleted {
		t.Errorf("Status = %s, want completed", test.Status)
	}
	if test.CurrentSection != nil {
		t.Error("CurrentSection should be cleared on completion")
	}
	if test.CompletedAt == nil {
		t.Error("CompletedAt should be set on completion")
	}
}

func TestLateSubmissionAccepted(t *testing.T) {
	test := inProgressTest(models.ModuleReading)
	now := time.Now()
	_ = startSection(test, models.ModuleReading, now)

	// Way past the advisory deadline.
	_, _, err := completeSection(test, models.ModuleReading, now.Add(3*time.Hour), 10800)
	if err != nil {
		t.Errorf("late completeSection() error = %v, want nil", err)
	}
}

func TestAbandonTest(t *testing.T) {
	test := inProgressTest(models.ModuleWriting)
	if err := abandonTest(test); err != nil {
		t.Fatalf("abandonTest() error = %v", err)
	}
	if test.Status != models.TestAbandoned {
		t.Errorf("Status = %s, want abandoned", test.Status)
	}

	// Terminal: abandoning twice fails, as does any section action.
	if err := abandonTest(test); !errors.Is(err, ErrInvalidTestState) {
		t.Errorf("second abandon error = %v, want ErrInvalidTestState", err)
	}
	if err := startSection(test, models.ModuleWriting, time.Now()); !errors.Is(err, ErrInvalidTestState) {
		t.Errorf("start after abandon error = %v, want ErrInvalidTestState", err)
	}
}

func TestSectionTimingDerivation(t *testing.T) {
	test := inProgressTest(models.ModuleListening)
	now := time.Now()
	_ = startSection(test, models.ModuleListening, now)

	timing := sectionTiming(test, now.Add(10*time.Minute))
	if timing == nil {
		t.Fatal("sectionTiming() = nil for started section")
	}
	if timing.TimeRemainingSeconds != 30*60 {
		t.Errorf("TimeRemainingSeconds = %d, want %d", timing.TimeRemainingSeconds, 30*60)
	}
	if timing.IsOvertime {
		t.Error("IsOvertime = true before deadline")
	}

	late := sectionTiming(test, now.Add(50*time.Minute))
	if late.TimeRemainingSeconds != 0 {
		t.Errorf("late TimeRemainingSeconds = %d, want 0", late.TimeRemainingSeconds)
	}
	if !late.IsOvertime {
		t.Error("IsOvertime = false past deadline")
	}
}
