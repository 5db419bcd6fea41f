package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/events"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/lock"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/scoring"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/validator"
)

// evaluationLockTTL must exceed worst-case transcription plus grading
// latency with margin.
const evaluationLockTTL = 5 * time.Minute

type mockTestService struct {
	repo      repositories.Repository
	locker    lock.Service
	evaluator Evaluator
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewMockTestService(repo repositories.Repository, locker lock.Service, evaluator Evaluator, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) MockTestService {
	return &mockTestService{
		repo:      repo,
		locker:    locker,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE OPERATIONS =====

func (s *mockTestService) Create(ctx context.Context, req *CreateTestRequest, ownerID string) (*TestResponse, error) {
	s.logger.Info("Creating mock test", "owner_id", ownerID, "variant", req.Variant)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	active, err := s.repo.MockTest().CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active tests: %w", err)
	}
	if active > 0 {
		return nil, ErrActiveTestExists
	}

	first := models.ModuleOrder[0]
	test := &models.MockTest{
		OwnerID:        ownerID,
		Variant:        req.Variant,
		Status:         models.TestInProgress,
		CurrentSection: &first,
	}
	if err := s.repo.MockTest().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create mock test: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTestCreated, map[string]any{
		"test_id":  test.ID,
		"owner_id": ownerID,
		"variant":  req.Variant,
	}))

	return &TestResponse{Test: test}, nil
}

func (s *mockTestService) Get(ctx context.Context, testID uint, callerID string) (*TestResponse, error) {
	test, err := s.getOwnedTest(ctx, testID, callerID, "view")
	if err != nil {
		return nil, err
	}

	results, err := s.repo.SectionResult().ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to load section results: %w", err)
	}

	return &TestResponse{
		Test:    test,
		Timing:  sectionTiming(test, time.Now()),
		Results: results,
	}, nil
}

func (s *mockTestService) List(ctx context.Context, ownerID string, req *ListTestsRequest) (*TestListResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	tests, total, err := s.repo.MockTest().List(ctx, repositories.MockTestFilters{
		OwnerID:  &ownerID,
		Status:   req.Status,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Limit:    limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mock tests: %w", err)
	}

	return &TestListResponse{Tests: tests, Total: total}, nil
}

func (s *mockTestService) StartSection(ctx context.Context, testID uint, callerID string, section models.TestModule) (*StartSectionResponse, error) {
	s.logger.Info("Starting section", "test_id", testID, "section", section)

	test, err := s.getOwnedTest(ctx, testID, callerID, "start section")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := startSection(test, section, now); err != nil {
		return nil, err
	}

	// Listening and reading need a question set; the other sections get
	// one when the pool has prompts for them but can run without.
	var content *models.Content
	switch section {
	case models.ModuleListening, models.ModuleReading:
		content, err = s.repo.Content().FindRandom(ctx, section, models.ContentFullTest, &test.Variant)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve content: %w", err)
		}
		if content == nil {
			return nil, ErrContentUnavailable
		}
	default:
		content, err = s.repo.Content().FindRandom(ctx, section, models.ContentFullTest, &test.Variant)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve content: %w", err)
		}
	}

	if err := s.repo.MockTest().Update(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to persist section start: %w", err)
	}

	return &StartSectionResponse{
		Content: content,
		Timing:  *sectionTiming(test, now),
	}, nil
}

func (s *mockTestService) SubmitSection(ctx context.Context, testID uint, callerID string, section models.TestModule, req *SubmitSectionRequest) (*SubmitSectionResponse, error) {
	s.logger.Info("Submitting section", "test_id", testID, "section", section)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, err := s.getOwnedTest(ctx, testID, callerID, "submit section")
	if err != nil {
		return nil, err
	}

	// Pre-check the state machine guards before any scoring work; the
	// same guards run again inside the transactional advance.
	if test.Status != models.TestInProgress {
		return nil, ErrInvalidTestState
	}
	if test.CurrentSection == nil || *test.CurrentSection != section {
		return nil, ErrWrongSection
	}

	switch section {
	case models.ModuleListening, models.ModuleReading:
		return s.submitObjective(ctx, test, section, req)
	case models.ModuleWriting:
		return s.submitWriting(ctx, test, req)
	case models.ModuleSpeaking:
		return s.submitSpeaking(ctx, test, req)
	default:
		return nil, fmt.Errorf("%w: unknown section %q", ErrValidationFailed, section)
	}
}

func (s *mockTestService) Abandon(ctx context.Context, testID uint, callerID string) error {
	test, err := s.getOwnedTest(ctx, testID, callerID, "abandon")
	if err != nil {
		return err
	}

	if err := abandonTest(test); err != nil {
		return err
	}
	if err := s.repo.MockTest().Update(ctx, test); err != nil {
		return fmt.Errorf("failed to abandon test: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTestAbandoned, map[string]any{
		"test_id":  test.ID,
		"owner_id": test.OwnerID,
	}))
	return nil
}

// ===== SHARED HELPERS =====

func (s *mockTestService) getOwnedTest(ctx context.Context, testID uint, callerID, action string) (*models.MockTest, error) {
	test, err := s.repo.MockTest().GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get mock test: %w", err)
	}
	if test.OwnerID != callerID {
		return nil, NewPermissionError(callerID, testID, action, "not the test owner")
	}
	return test, nil
}

// publishEvent publishes best-effort: event delivery never fails a user
// operation.
func (s *mockTestService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "type", event.Type, "error", err)
	}
}

// moduleBand returns a pointer to the test's band field for a module.
func moduleBand(test *models.MockTest, module models.TestModule) **float64 {
	switch module {
	case models.ModuleListening:
		return &test.ListeningBand
	case models.ModuleReading:
		return &test.ReadingBand
	case models.ModuleWriting:
		return &test.WritingBand
	default:
		return &test.SpeakingBand
	}
}

// finishSubmission advances the state machine inside the caller's
// transaction and computes the overall band when the test completes.
func finishSubmission(test *models.MockTest, section models.TestModule, now time.Time, timeSpent int) (next models.TestModule, completed bool, err error) {
	next, completed, err = completeSection(test, section, now, timeSpent)
	if err != nil {
		return "", false, err
	}
	if completed {
		overall := scoring.OverallBand(test.ListeningBand, test.ReadingBand, test.WritingBand, test.SpeakingBand)
		test.OverallBand = overall
	}
	return next, completed, nil
}
