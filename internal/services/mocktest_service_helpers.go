package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/evaluation"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/events"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/lock"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/scoring"
)

// ===== OBJECTIVE SECTIONS =====

// submitObjective scores listening/reading synchronously against the
// answer key. Duplicate submissions are tolerated as last-write-wins:
// scoring is deterministic and calls no paid services.
func (s *mockTestService) submitObjective(ctx context.Context, test *models.MockTest, section models.TestModule, req *SubmitSectionRequest) (*SubmitSectionResponse, error) {
	if req.ContentID == nil {
		return nil, fmt.Errorf("%w: content_id is required for %s", ErrValidationFailed, section)
	}
	if len(req.Answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required for %s", ErrValidationFailed, section)
	}

	key, err := s.repo.Content().GetAnswerKey(ctx, *req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answer key: %w", err)
	}
	if key == nil {
		return nil, ErrContentUnavailable
	}

	score, err := scoreObjective(req.Answers, key)
	if err != nil {
		return nil, fmt.Errorf("failed to score answers: %w", err)
	}
	if score.TotalCount == 0 {
		return nil, ErrContentUnavailable
	}

	percentage := float64(score.CorrectCount) / float64(score.TotalCount) * 100
	band := scoring.BandForPercentage(percentage)

	answersJSON, _ := json.Marshal(req.Answers)
	detailJSON, _ := json.Marshal(score.Detail)

	result := &models.SectionResult{
		TestID:           test.ID,
		OwnerID:          test.OwnerID,
		Module:           section,
		ContentID:        req.ContentID,
		Answers:          datatypes.JSON(answersJSON),
		CorrectCount:     &score.CorrectCount,
		TotalCount:       &score.TotalCount,
		Detail:           datatypes.JSON(detailJSON),
		Band:             &band,
		EvaluationStatus: models.EvaluationScored,
		TimeSpent:        req.TimeSpentSeconds,
	}

	now := time.Now()
	var next models.TestModule
	var completed bool

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.SectionResult().Create(ctx, result); err != nil {
			return fmt.Errorf("failed to store section result: %w", err)
		}

		if section == models.ModuleListening {
			test.ListeningResultID = &result.ID
		} else {
			test.ReadingResultID = &result.ID
		}
		*moduleBand(test, section) = &band

		next, completed, err = finishSubmission(test, section, now, req.TimeSpentSeconds)
		if err != nil {
			return err
		}
		return txRepo.MockTest().Update(ctx, test)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubmissionEvents(ctx, test, section, completed)

	return &SubmitSectionResponse{
		Completed: true,
		Score: &SectionScore{
			CorrectCount:     &score.CorrectCount,
			TotalCount:       &score.TotalCount,
			Band:             &band,
			EvaluationStatus: models.EvaluationScored,
		},
		NextSection:    next,
		IsTestComplete: completed,
		Status:         test.Status,
		OverallBand:    test.OverallBand,
	}, nil
}

// ===== FREE-RESPONSE SECTIONS =====

// evaluationDetail is the persisted shape of one pipeline outcome.
type evaluationDetail struct {
	Task          int                         `json:"task,omitempty"`
	Part          int                         `json:"part,omitempty"`
	Status        models.EvaluationStatus     `json:"status"`
	Band          *float64                    `json:"band,omitempty"`
	Criteria      []evaluation.CriterionScore `json:"criteria,omitempty"`
	Metrics       map[string]any              `json:"metrics,omitempty"`
	Feedback      string                      `json:"feedback,omitempty"`
	FailureReason string                      `json:"failure_reason,omitempty"`
}

func detailFromOutcome(outcome evaluation.Outcome) evaluationDetail {
	d := evaluationDetail{Status: outcome.Status}
	if outcome.Status == models.EvaluationScored {
		band := outcome.Band
		d.Band = &band
		d.Criteria = outcome.Criteria
		d.Metrics = outcome.Metrics
		d.Feedback = outcome.Feedback
	} else {
		d.FailureReason = string(outcome.Reason)
	}
	return d
}

// acquireEvaluationLock takes the per-(user, module) submission lock.
// A nil handle with nil error means the lock is contended.
func (s *mockTestService) acquireEvaluationLock(ctx context.Context, ownerID string, module models.TestModule) (*lockGuard, error) {
	key := fmt.Sprintf("mocktest:eval:%s:%s", ownerID, module)
	handle, err := s.locker.Acquire(ctx, key, evaluationLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire evaluation lock: %w", err)
	}
	if handle == nil {
		return nil, ErrDuplicateSubmission
	}
	return &lockGuard{svc: s, handle: handle}, nil
}

type lockGuard struct {
	svc      *mockTestService
	handle   *lock.Handle
	released bool
}

func (g *lockGuard) release(ctx context.Context) {
	if g.released {
		return
	}
	g.released = true
	if _, err := g.svc.locker.Release(ctx, g.handle); err != nil {
		g.svc.logger.Error("failed to release evaluation lock", "error", err)
	}
}

func (s *mockTestService) submitWriting(ctx context.Context, test *models.MockTest, req *SubmitSectionRequest) (*SubmitSectionResponse, error) {
	if len(req.Essays) == 0 {
		return nil, fmt.Errorf("%w: at least one essay is required", ErrValidationFailed)
	}

	title, prompt := s.taskContext(ctx, req.ContentID)

	guard, err := s.acquireEvaluationLock(ctx, test.OwnerID, models.ModuleWriting)
	if err != nil {
		return nil, err
	}
	defer guard.release(ctx)

	// The lock covers only the pipeline invocation; it is released before
	// any store writes.
	outcomes := make(map[int]evaluation.Outcome, len(req.Essays))
	for _, essay := range req.Essays {
		outcomes[essay.Task] = s.evaluator.Evaluate(ctx, evaluation.Request{
			Module:      models.ModuleWriting,
			TaskTitle:   title,
			TaskPrompt:  prompt,
			WritingTask: essay.Task,
			EssayText:   essay.Text,
		})
	}
	guard.release(ctx)

	var task1, task2 *float64
	details := make([]evaluationDetail, 0, len(outcomes))
	for _, essay := range req.Essays {
		outcome := outcomes[essay.Task]
		d := detailFromOutcome(outcome)
		d.Task = essay.Task
		details = append(details, d)

		if outcome.Status == models.EvaluationScored {
			band := outcome.Band
			if essay.Task == 1 {
				task1 = &band
			} else {
				task2 = &band
			}
		} else {
			s.publishEvaluationFailure(ctx, test, models.ModuleWriting, outcome)
		}
	}
	combined := scoring.CombineWritingBands(task1, task2)

	status, failureReason := aggregateStatus(details)
	answersJSON, _ := json.Marshal(req.Essays)
	detailJSON, _ := json.Marshal(details)

	result := &models.SectionResult{
		TestID:           test.ID,
		OwnerID:          test.OwnerID,
		Module:           models.ModuleWriting,
		ContentID:        req.ContentID,
		Answers:          datatypes.JSON(answersJSON),
		Detail:           datatypes.JSON(detailJSON),
		Band:             combined,
		EvaluationStatus: status,
		FailureReason:    failureReason,
		TimeSpent:        req.TimeSpentSeconds,
	}

	now := time.Now()
	var next models.TestModule
	var completed bool

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.SectionResult().Create(ctx, result); err != nil {
			return fmt.Errorf("failed to store section result: %w", err)
		}
		test.WritingResultID = &result.ID
		test.WritingBand = combined

		next, completed, err = finishSubmission(test, models.ModuleWriting, now, req.TimeSpentSeconds)
		if err != nil {
			return err
		}
		return txRepo.MockTest().Update(ctx, test)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubmissionEvents(ctx, test, models.ModuleWriting, completed)

	return &SubmitSectionResponse{
		Completed: true,
		Score: &SectionScore{
			Band:             combined,
			EvaluationStatus: status,
			FailureReason:    failureReason,
		},
		NextSection:    next,
		IsTestComplete: completed,
		Status:         test.Status,
		OverallBand:    test.OverallBand,
	}, nil
}

func (s *mockTestService) submitSpeaking(ctx context.Context, test *models.MockTest, req *SubmitSectionRequest) (*SubmitSectionResponse, error) {
	if len(req.AudioParts) == 0 {
		return nil, fmt.Errorf("%w: at least one audio part is required", ErrValidationFailed)
	}

	title, prompt := s.taskContext(ctx, req.ContentID)

	guard, err := s.acquireEvaluationLock(ctx, test.OwnerID, models.ModuleSpeaking)
	if err != nil {
		return nil, err
	}
	defer guard.release(ctx)

	outcomes := make([]evaluation.Outcome, len(req.AudioParts))
	for i, part := range req.AudioParts {
		outcomes[i] = s.evaluator.Evaluate(ctx, evaluation.Request{
			Module:        models.ModuleSpeaking,
			TaskTitle:     title,
			TaskPrompt:    prompt,
			SpeakingPart:  part.Part,
			Audio:         part.Data,
			AudioFilename: part.Filename,
		})
	}
	guard.release(ctx)

	var partBands []*float64
	results := make([]*models.SectionResult, len(req.AudioParts))
	details := make([]evaluationDetail, len(req.AudioParts))

	for i, part := range req.AudioParts {
		outcome := outcomes[i]
		d := detailFromOutcome(outcome)
		d.Part = part.Part
		details[i] = d

		if outcome.Status == models.EvaluationScored {
			band := outcome.Band
			partBands = append(partBands, &band)
		} else {
			s.publishEvaluationFailure(ctx, test, models.ModuleSpeaking, outcome)
		}

		partNum := part.Part
		detailJSON, _ := json.Marshal(d)
		result := &models.SectionResult{
			TestID:           test.ID,
			OwnerID:          test.OwnerID,
			Module:           models.ModuleSpeaking,
			Part:             &partNum,
			ContentID:        req.ContentID,
			Detail:           datatypes.JSON(detailJSON),
			Band:             d.Band,
			EvaluationStatus: outcome.Status,
			TimeSpent:        req.TimeSpentSeconds,
		}
		if outcome.Transcript != "" {
			transcript := outcome.Transcript
			result.Transcript = &transcript
		}
		if outcome.Status != models.EvaluationScored {
			reason := string(outcome.Reason)
			result.FailureReason = &reason
		}
		results[i] = result
	}

	sectionBand := scoring.CombineSpeakingBands(partBands)
	status, failureReason := aggregateStatus(details)

	now := time.Now()
	var next models.TestModule
	var completed bool

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		ids := make([]uint, 0, len(results))
		for _, result := range results {
			if err := txRepo.SectionResult().Create(ctx, result); err != nil {
				return fmt.Errorf("failed to store section result: %w", err)
			}
			ids = append(ids, result.ID)
		}

		idsJSON, _ := json.Marshal(ids)
		test.SpeakingResultIDs = datatypes.JSON(idsJSON)
		test.SpeakingBand = sectionBand

		next, completed, err = finishSubmission(test, models.ModuleSpeaking, now, req.TimeSpentSeconds)
		if err != nil {
			return err
		}
		return txRepo.MockTest().Update(ctx, test)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubmissionEvents(ctx, test, models.ModuleSpeaking, completed)

	return &SubmitSectionResponse{
		Completed: true,
		Score: &SectionScore{
			Band:             sectionBand,
			EvaluationStatus: status,
			FailureReason:    failureReason,
		},
		NextSection:    next,
		IsTestComplete: completed,
		Status:         test.Status,
		OverallBand:    test.OverallBand,
	}, nil
}

// taskContext resolves the task's title and prompt for the grader. Missing
// content is not an error here: free-response grading can proceed on the
// submission text alone.
func (s *mockTestService) taskContext(ctx context.Context, contentID *uint) (title, prompt string) {
	if contentID == nil {
		return "", ""
	}
	content, err := s.repo.Content().GetByID(ctx, *contentID)
	if err != nil || content == nil {
		return "", ""
	}

	var payload struct {
		Prompt string `json:"prompt"`
	}
	_ = json.Unmarshal(content.Payload, &payload)
	return content.Title, payload.Prompt
}

// aggregateStatus folds per-task outcomes into one section status: scored
// when anything scored, otherwise failed with the first failure reason.
func aggregateStatus(details []evaluationDetail) (models.EvaluationStatus, *string) {
	anyScored := false
	var firstReason *string
	for _, d := range details {
		if d.Status == models.EvaluationScored {
			anyScored = true
		} else if firstReason == nil && d.FailureReason != "" {
			reason := d.FailureReason
			firstReason = &reason
		}
	}
	if anyScored {
		return models.EvaluationScored, nil
	}
	return models.EvaluationFailed, firstReason
}

func (s *mockTestService) publishSubmissionEvents(ctx context.Context, test *models.MockTest, section models.TestModule, completed bool) {
	s.publishEvent(ctx, events.NewEvent(events.EventSectionSubmitted, map[string]any{
		"test_id":  test.ID,
		"owner_id": test.OwnerID,
		"section":  section,
	}))
	if completed {
		s.publishEvent(ctx, events.NewEvent(events.EventTestCompleted, map[string]any{
			"test_id":      test.ID,
			"owner_id":     test.OwnerID,
			"overall_band": test.OverallBand,
		}))
	}
}

func (s *mockTestService) publishEvaluationFailure(ctx context.Context, test *models.MockTest, section models.TestModule, outcome evaluation.Outcome) {
	s.publishEvent(ctx, events.NewEvent(events.EventEvaluationFailed, map[string]any{
		"test_id":  test.ID,
		"owner_id": test.OwnerID,
		"section":  section,
		"reason":   string(outcome.Reason),
	}))
}
