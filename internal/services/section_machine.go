package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// The section state machine mutates a MockTest in memory; persistence is
// the caller's job. Guards are checked in a fixed order: test status
// first, then section identity.

// startSection marks the requested section as started and stamps its
// advisory deadline. The deadline is never enforced server-side; it only
// drives client auto-submit.
func startSection(test *models.MockTest, section models.TestModule, now time.Time) error {
	if test.Status != models.TestInProgress {
		return ErrInvalidTestState
	}
	if test.CurrentSection == nil || *test.CurrentSection != section {
		return ErrWrongSection
	}

	deadline := now.Add(models.ModuleDurations[section])
	test.CurrentSectionStartedAt = &now
	test.CurrentSectionDeadline = &deadline

	return mergeSectionTiming(test, section, models.SectionTiming{
		StartedAt: &now,
		Deadline:  &deadline,
	})
}

// completeSection records the section as done and advances the cursor.
// It returns the next section, or completed=true when none remain; the
// caller computes the overall band and terminal fields on completion.
// Late submissions are accepted: the client's reported timeSpent is
// recorded as given.
func completeSection(test *models.MockTest, section models.TestModule, now time.Time, timeSpentSeconds int) (next models.TestModule, completed bool, err error) {
	if test.Status != models.TestInProgress {
		return "", false, ErrInvalidTestState
	}
	if test.CurrentSection == nil || *test.CurrentSection != section {
		return "", false, ErrWrongSection
	}

	if err := mergeSectionTiming(test, section, models.SectionTiming{
		CompletedAt: &now,
		TimeSpent:   timeSpentSeconds,
	}); err != nil {
		return "", false, err
	}

	next = models.NextModule(section)
	if next == "" {
		test.Status = models.TestCompleted
		test.CurrentSection = nil
		test.CurrentSectionStartedAt = nil
		test.CurrentSectionDeadline = nil
		test.CompletedAt = &now
		return "", true, nil
	}

	// The next section must be explicitly started.
	test.CurrentSection = &next
	test.CurrentSectionStartedAt = nil
	test.CurrentSectionDeadline = nil
	return next, false, nil
}

// abandonTest irreversibly abandons an in-progress test.
func abandonTest(test *models.MockTest) error {
	if test.Status != models.TestInProgress {
		return ErrInvalidTestState
	}
	test.Status = models.TestAbandoned
	test.CurrentSection = nil
	test.CurrentSectionStartedAt = nil
	test.CurrentSectionDeadline = nil
	return nil
}

// mergeSectionTiming merges one timing update into the per-section audit
// trail, preserving fields set by earlier updates.
func mergeSectionTiming(test *models.MockTest, section models.TestModule, update models.SectionTiming) error {
	times := map[models.TestModule]models.SectionTiming{}
	if len(test.SectionTimes) > 0 {
		if err := json.Unmarshal(test.SectionTimes, &times); err != nil {
			return fmt.Errorf("failed to decode section times: %w", err)
		}
	}

	entry := times[section]
	if update.StartedAt != nil {
		entry.StartedAt = update.StartedAt
	}
	if update.Deadline != nil {
		entry.Deadline = update.Deadline
	}
	if update.CompletedAt != nil {
		entry.CompletedAt = update.CompletedAt
	}
	if update.TimeSpent > 0 {
		entry.TimeSpent = update.TimeSpent
	}
	times[section] = entry

	data, err := json.Marshal(times)
	if err != nil {
		return fmt.Errorf("failed to encode section times: %w", err)
	}
	test.SectionTimes = datatypes.JSON(data)
	return nil
}

// sectionTiming builds the derived timing view for the current section,
// or nil when no section has been started.
func sectionTiming(test *models.MockTest, now time.Time) *SectionTimingInfo {
	if test.CurrentSection == nil || test.CurrentSectionStartedAt == nil || test.CurrentSectionDeadline == nil {
		return nil
	}

	remaining := int(test.CurrentSectionDeadline.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &SectionTimingInfo{
		Section:              *test.CurrentSection,
		StartedAt:            *test.CurrentSectionStartedAt,
		Deadline:             *test.CurrentSectionDeadline,
		DurationSeconds:      int(models.ModuleDurations[*test.CurrentSection].Seconds()),
		TimeRemainingSeconds: remaining,
		IsOvertime:           now.After(*test.CurrentSectionDeadline),
	}
}
