package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/evaluation"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/events"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/lock"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/validator"
)

// ===== IN-MEMORY REPOSITORY =====

type memRepository struct {
	tests    map[uint]*models.MockTest
	results  map[uint]*models.SectionResult
	contents map[uint]*models.Content
	keys     map[uint]*models.AnswerKey
	nextID   uint
}

func newMemRepository() *memRepository {
	return &memRepository{
		tests:    map[uint]*models.MockTest{},
		results:  map[uint]*models.SectionResult{},
		contents: map[uint]*models.Content{},
		keys:     map[uint]*models.AnswerKey{},
	}
}

func (m *memRepository) MockTest() repositories.MockTestRepository           { return &memMockTests{m} }
func (m *memRepository) SectionResult() repositories.SectionResultRepository { return &memResults{m} }
func (m *memRepository) Content() repositories.ContentRepository             { return &memContents{m} }
func (m *memRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *memRepository) Ping(ctx context.Context) error { return nil }
func (m *memRepository) Close() error                   { return nil }

type memMockTests struct{ m *memRepository }

func (r *memMockTests) Create(ctx context.Context, test *models.MockTest) error {
	r.m.nextID++
	test.ID = r.m.nextID
	test.CreatedAt = time.Now()
	stored := *test
	r.m.tests[test.ID] = &stored
	return nil
}

func (r *memMockTests) GetByID(ctx context.Context, id uint) (*models.MockTest, error) {
	stored, ok := r.m.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memMockTests) Update(ctx context.Context, test *models.MockTest) error {
	stored := *test
	r.m.tests[test.ID] = &stored
	return nil
}

func (r *memMockTests) List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error) {
	var out []*models.MockTest
	for _, test := range r.m.tests {
		if filters.OwnerID != nil && test.OwnerID != *filters.OwnerID {
			continue
		}
		if filters.Status != nil && test.Status != *filters.Status {
			continue
		}
		copied := *test
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memMockTests) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	for _, test := range r.m.tests {
		if test.OwnerID == ownerID && test.Status == models.TestInProgress {
			count++
		}
	}
	return count, nil
}

type memResults struct{ m *memRepository }

func (r *memResults) Create(ctx context.Context, result *models.SectionResult) error {
	r.m.nextID++
	result.ID = r.m.nextID
	stored := *result
	r.m.results[result.ID] = &stored
	return nil
}

func (r *memResults) GetByID(ctx context.Context, id uint) (*models.SectionResult, error) {
	stored, ok := r.m.results[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memResults) Update(ctx context.Context, result *models.SectionResult) error {
	stored := *result
	r.m.results[result.ID] = &stored
	return nil
}

func (r *memResults) ListByTest(ctx context.Context, testID uint) ([]*models.SectionResult, error) {
	var out []*models.SectionResult
	for _, result := range r.m.results {
		if result.TestID == testID {
			copied := *result
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memContents struct{ m *memRepository }

func (r *memContents) GetByID(ctx context.Context, id uint) (*models.Content, error) {
	stored, ok := r.m.contents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memContents) FindRandom(ctx context.Context, module models.TestModule, contentType models.ContentType, variant *models.TestVariant) (*models.Content, error) {
	for _, content := range r.m.contents {
		if content.Module == module && content.Type == contentType && content.Active {
			copied := *content
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memContents) GetAnswerKey(ctx context.Context, contentID uint) (*models.AnswerKey, error) {
	key, ok := r.m.keys[contentID]
	if !ok {
		return nil, nil
	}
	copied := *key
	return &copied, nil
}

// ===== FAKE COLLABORATORS =====

type fakeLockService struct {
	contended bool
	acquired  []string
	releases  int
}

func (f *fakeLockService) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Handle, error) {
	if f.contended {
		return nil, nil
	}
	f.acquired = append(f.acquired, key)
	return &lock.Handle{Key: key, Token: "test-token"}, nil
}

func (f *fakeLockService) Release(ctx context.Context, handle *lock.Handle) (bool, error) {
	f.releases++
	return true, nil
}

func (f *fakeLockService) Extend(ctx context.Context, handle *lock.Handle, ttl time.Duration) (bool, error) {
	return true, nil
}

type fakeEvaluator struct {
	band float64
	fail evaluation.FailureReason
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req evaluation.Request) evaluation.Outcome {
	if f.fail != "" {
		return evaluation.Outcome{Status: models.EvaluationFailed, Reason: f.fail}
	}
	return evaluation.Outcome{
		Status:     models.EvaluationScored,
		Band:       f.band,
		Transcript: "transcribed text",
		Metrics:    map[string]any{"word_count": 42},
	}
}

// ===== FIXTURE =====

type fixture struct {
	svc       MockTestService
	repo      *memRepository
	locker    *fakeLockService
	evaluator *fakeEvaluator
	publisher *events.MockEventPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := newMemRepository()
	locker := &fakeLockService{}
	evaluator := &fakeEvaluator{band: 7.0}
	publisher := events.NewMockEventPublisher(logger)

	svc := NewMockTestService(repo, locker, evaluator, publisher, logger, validator.New())
	return &fixture{svc: svc, repo: repo, locker: locker, evaluator: evaluator, publisher: publisher}
}

// seedObjectiveContent installs a content item plus an answer key whose
// entries are all "a", and returns the content id.
func (f *fixture) seedObjectiveContent(module models.TestModule, questions int) uint {
	id := uint(1000 + len(f.repo.contents))
	f.repo.contents[id] = &models.Content{
		ID:     id,
		Module: module,
		Type:   models.ContentFullTest,
		Title:  fmt.Sprintf("%s set", module),
		Active: true,
	}

	entries := make([]string, questions)
	for i := range entries {
		entries[i] = `"a"`
	}
	f.repo.keys[id] = &models.AnswerKey{
		ContentID: id,
		Answers:   datatypes.JSON("[" + strings.Join(entries, ",") + "]"),
	}
	return id
}

func answersWithCorrect(correct, total int) []string {
	out := make([]string, total)
	for i := range out {
		if i < correct {
			out[i] = "a"
		} else {
			out[i] = "b"
		}
	}
	return out
}

const owner = "user-1"

func mustCreate(t *testing.T, f *fixture) *models.MockTest {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), &CreateTestRequest{Variant: models.VariantAcademic}, owner)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return resp.Test
}

// advanceObjective starts and submits one objective section.
func advanceObjective(t *testing.T, f *fixture, testID uint, section models.TestModule, correct, total int) *SubmitSectionResponse {
	t.Helper()
	contentID := f.seedObjectiveContent(section, total)

	if _, err := f.svc.StartSection(context.Background(), testID, owner, section); err != nil {
		t.Fatalf("StartSection(%s) error = %v", section, err)
	}
	resp, err := f.svc.SubmitSection(context.Background(), testID, owner, section, &SubmitSectionRequest{
		ContentID:        &contentID,
		Answers:          answersWithCorrect(correct, total),
		TimeSpentSeconds: 600,
	})
	if err != nil {
		t.Fatalf("SubmitSection(%s) error = %v", section, err)
	}
	return resp
}

// ===== TESTS =====

func TestCreateMockTest(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	if test.Status != models.TestInProgress {
		t.Errorf("Status = %s, want in_progress", test.Status)
	}
	if test.CurrentSection == nil || *test.CurrentSection != models.ModuleListening {
		t.Errorf("CurrentSection = %v, want listening", test.CurrentSection)
	}

	// Only one active test per user.
	_, err := f.svc.Create(context.Background(), &CreateTestRequest{Variant: models.VariantAcademic}, owner)
	if !errors.Is(err, ErrActiveTestExists) {
		t.Errorf("second Create() error = %v, want ErrActiveTestExists", err)
	}
}

func TestGetOwnershipAndNotFound(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	if _, err := f.svc.Get(context.Background(), test.ID+99, owner); !errors.Is(err, ErrTestNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTestNotFound", err)
	}

	var permErr *PermissionError
	if _, err := f.svc.Get(context.Background(), test.ID, "someone-else"); !errors.As(err, &permErr) {
		t.Errorf("Get(wrong owner) error = %v, want PermissionError", err)
	}
}

func TestObjectiveSubmission(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	// 32/40 is 80 percent, which maps to band 8.0.
	resp := advanceObjective(t, f, test.ID, models.ModuleListening, 32, 40)

	if resp.Score == nil || resp.Score.Band == nil || *resp.Score.Band != 8.0 {
		t.Fatalf("Score = %+v, want band 8.0", resp.Score)
	}
	if *resp.Score.CorrectCount != 32 || *resp.Score.TotalCount != 40 {
		t.Errorf("counts = %d/%d, want 32/40", *resp.Score.CorrectCount, *resp.Score.TotalCount)
	}
	if resp.NextSection != models.ModuleReading {
		t.Errorf("NextSection = %s, want reading", resp.NextSection)
	}
	if resp.IsTestComplete {
		t.Error("IsTestComplete = true after first section")
	}

	stored := f.repo.tests[test.ID]
	if stored.ListeningBand == nil || *stored.ListeningBand != 8.0 {
		t.Errorf("stored ListeningBand = %v, want 8.0", stored.ListeningBand)
	}
	if stored.ListeningResultID == nil {
		t.Error("stored ListeningResultID not set")
	}
}

func TestSubmitWrongSection(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)
	contentID := f.seedObjectiveContent(models.ModuleReading, 10)

	_, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleReading, &SubmitSectionRequest{
		ContentID: &contentID,
		Answers:   answersWithCorrect(10, 10),
	})
	if !errors.Is(err, ErrWrongSection) {
		t.Errorf("out-of-order submit error = %v, want ErrWrongSection", err)
	}
}

func TestStartSectionContentUnavailable(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	// No listening content seeded.
	_, err := f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleListening)
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("StartSection without content error = %v, want ErrContentUnavailable", err)
	}
}

func TestWritingDuplicateSubmission(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)
	advanceObjective(t, f, test.ID, models.ModuleListening, 30, 40)
	advanceObjective(t, f, test.ID, models.ModuleReading, 30, 40)

	if _, err := f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleWriting); err != nil {
		t.Fatalf("StartSection(writing) error = %v", err)
	}

	f.locker.contended = true
	_, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleWriting, &SubmitSectionRequest{
		Essays: []EssaySubmission{{Task: 2, Text: "essay text"}},
	})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("contended submit error = %v, want ErrDuplicateSubmission", err)
	}

	// The contended submission must not have advanced the test.
	stored := f.repo.tests[test.ID]
	if stored.CurrentSection == nil || *stored.CurrentSection != models.ModuleWriting {
		t.Errorf("CurrentSection = %v, want writing (unchanged)", stored.CurrentSection)
	}
}

func TestWritingSubmissionCombinesBands(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)
	advanceObjective(t, f, test.ID, models.ModuleListening, 30, 40)
	advanceObjective(t, f, test.ID, models.ModuleReading, 30, 40)

	if _, err := f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleWriting); err != nil {
		t.Fatalf("StartSection(writing) error = %v", err)
	}

	f.evaluator.band = 7.0
	resp, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleWriting, &SubmitSectionRequest{
		Essays: []EssaySubmission{
			{Task: 1, Text: "task one essay"},
			{Task: 2, Text: "task two essay"},
		},
		TimeSpentSeconds: 3500,
	})
	if err != nil {
		t.Fatalf("SubmitSection(writing) error = %v", err)
	}

	// Both tasks at 7.0: (7 + 2*7)/3 = 7.0.
	if resp.Score.Band == nil || *resp.Score.Band != 7.0 {
		t.Errorf("writing band = %v, want 7.0", resp.Score.Band)
	}
	if resp.NextSection != models.ModuleSpeaking {
		t.Errorf("NextSection = %s, want speaking", resp.NextSection)
	}
	if f.locker.releases == 0 {
		t.Error("evaluation lock was never released")
	}
}

func TestWritingEvaluationFailureStillAdvances(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)
	advanceObjective(t, f, test.ID, models.ModuleListening, 30, 40)
	advanceObjective(t, f, test.ID, models.ModuleReading, 30, 40)
	_, _ = f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleWriting)

	f.evaluator.fail = evaluation.GradingUnavailable
	resp, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleWriting, &SubmitSectionRequest{
		Essays: []EssaySubmission{{Task: 2, Text: "essay text"}},
	})
	if err != nil {
		t.Fatalf("SubmitSection(writing) error = %v, grading failure must not abort", err)
	}

	if resp.Score.EvaluationStatus != models.EvaluationFailed {
		t.Errorf("EvaluationStatus = %s, want failed", resp.Score.EvaluationStatus)
	}
	if resp.Score.Band != nil {
		t.Errorf("failed evaluation band = %v, want nil", resp.Score.Band)
	}
	// The test still advances to speaking.
	if resp.NextSection != models.ModuleSpeaking {
		t.Errorf("NextSection = %s, want speaking", resp.NextSection)
	}

	stored := f.repo.tests[test.ID]
	if stored.WritingBand != nil {
		t.Errorf("stored WritingBand = %v, want nil", stored.WritingBand)
	}

	var sawFailure bool
	for _, event := range f.publisher.GetPublishedEvents() {
		if event.Type == events.EventEvaluationFailed {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("no evaluation-failed event published")
	}
}

func TestFullTestCompletion(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	advanceObjective(t, f, test.ID, models.ModuleListening, 32, 40) // 8.0
	advanceObjective(t, f, test.ID, models.ModuleReading, 26, 40)   // 65% -> 7.0

	_, _ = f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleWriting)
	f.evaluator.band = 6.5
	if _, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleWriting, &SubmitSectionRequest{
		Essays: []EssaySubmission{{Task: 1, Text: "one"}, {Task: 2, Text: "two"}},
	}); err != nil {
		t.Fatalf("SubmitSection(writing) error = %v", err)
	}

	if _, err := f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleSpeaking); err != nil {
		t.Fatalf("StartSection(speaking) error = %v", err)
	}
	f.evaluator.band = 7.0
	resp, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleSpeaking, &SubmitSectionRequest{
		AudioParts: []AudioPart{
			{Part: 1, Filename: "p1.webm", Data: strings.NewReader("a")},
			{Part: 2, Filename: "p2.webm", Data: strings.NewReader("b")},
			{Part: 3, Filename: "p3.webm", Data: strings.NewReader("c")},
		},
	})
	if err != nil {
		t.Fatalf("SubmitSection(speaking) error = %v", err)
	}

	if !resp.IsTestComplete {
		t.Fatal("IsTestComplete = false after final section")
	}
	if resp.Status != models.TestCompleted {
		t.Errorf("Status = %s, want completed", resp.Status)
	}
	// Mean of 8.0, 7.0, 6.5, 7.0 is 7.125, rounded to the nearest half: 7.0.
	if resp.OverallBand == nil || *resp.OverallBand != 7.0 {
		t.Errorf("OverallBand = %v, want 7.0", resp.OverallBand)
	}

	stored := f.repo.tests[test.ID]
	if stored.CompletedAt == nil {
		t.Error("CompletedAt not set on stored test")
	}
	if len(stored.SpeakingResultIDs) == 0 {
		t.Error("SpeakingResultIDs not recorded")
	}

	var sawCompleted bool
	for _, event := range f.publisher.GetPublishedEvents() {
		if event.Type == events.EventTestCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("no completion event published")
	}
}

func TestAbandonIsTerminal(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)

	if err := f.svc.Abandon(context.Background(), test.ID, owner); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if err := f.svc.Abandon(context.Background(), test.ID, owner); !errors.Is(err, ErrInvalidTestState) {
		t.Errorf("second Abandon() error = %v, want ErrInvalidTestState", err)
	}
	if _, err := f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleListening); !errors.Is(err, ErrInvalidTestState) {
		t.Errorf("StartSection after abandon error = %v, want ErrInvalidTestState", err)
	}
}

func TestSpeakingPartialFailure(t *testing.T) {
	f := newFixture(t)
	test := mustCreate(t, f)
	advanceObjective(t, f, test.ID, models.ModuleListening, 30, 40)
	advanceObjective(t, f, test.ID, models.ModuleReading, 30, 40)
	_, _ = f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleWriting)
	f.evaluator.band = 6.5
	_, _ = f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleWriting, &SubmitSectionRequest{
		Essays: []EssaySubmission{{Task: 2, Text: "essay"}},
	})
	_, _ = f.svc.StartSection(context.Background(), test.ID, owner, models.ModuleSpeaking)

	// One part only; the section band is the mean of present parts.
	f.evaluator.band = 6.0
	resp, err := f.svc.SubmitSection(context.Background(), test.ID, owner, models.ModuleSpeaking, &SubmitSectionRequest{
		AudioParts: []AudioPart{{Part: 2, Filename: "p2.webm", Data: strings.NewReader("x")}},
	})
	if err != nil {
		t.Fatalf("SubmitSection(speaking) error = %v", err)
	}
	if resp.Score.Band == nil || *resp.Score.Band != 6.0 {
		t.Errorf("speaking band = %v, want 6.0", resp.Score.Band)
	}
	if !resp.IsTestComplete {
		t.Error("test should complete after speaking")
	}
}
