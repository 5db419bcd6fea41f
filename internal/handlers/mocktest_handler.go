package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/services"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/utils"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/validator"
)

// maxAudioUploadBytes caps the multipart form size for speaking submissions.
const maxAudioUploadBytes = 64 << 20

// MockTestHandler serves the mock test lifecycle endpoints.
type MockTestHandler struct {
	BaseHandler
	mockTests services.MockTestService
	export    services.ExportService
}

func NewMockTestHandler(mockTests services.MockTestService, export services.ExportService, logger utils.Logger) *MockTestHandler {
	return &MockTestHandler{
		BaseHandler: NewBaseHandler(logger),
		mockTests:   mockTests,
		export:      export,
	}
}

// CreateTest starts a new mock test for the caller.
// POST /api/v1/mock-tests
func (h *MockTestHandler) CreateTest(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}

	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.mockTests.Create(c.Request.Context(), &req, ownerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "mock test created", "test_id", resp.Test.ID, "variant", resp.Test.Variant)
	c.JSON(http.StatusCreated, SuccessResponse{Data: resp, Message: "Mock test created"})
}

// ListTests returns the caller's test history.
// GET /api/v1/mock-tests
func (h *MockTestHandler) ListTests(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}

	req, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.mockTests.List(c.Request.Context(), ownerID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// ExportTests downloads the caller's test history as an Excel workbook.
// GET /api/v1/mock-tests/export
func (h *MockTestHandler) ExportTests(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}

	req, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	data, err := h.export.ExportResults(c.Request.Context(), ownerID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("mock-tests-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetTest returns one test with its section results and live timing.
// GET /api/v1/mock-tests/:id
func (h *MockTestHandler) GetTest(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	resp, err := h.mockTests.Get(c.Request.Context(), testID, callerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: resp})
}

// StartSection begins the section clock and resolves its content.
// POST /api/v1/mock-tests/:id/sections/:section/start
func (h *MockTestHandler) StartSection(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	section, ok := h.parseSectionParam(c)
	if !ok {
		return
	}

	resp, err := h.mockTests.StartSection(c.Request.Context(), testID, callerID, section)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "section started", "test_id", testID, "section", section)
	c.JSON(http.StatusOK, SuccessResponse{Data: resp, Message: "Section started"})
}

// SubmitSection records a section's answers. Listening, reading and writing
// submit JSON; speaking submits a multipart form with one audio file per part.
// POST /api/v1/mock-tests/:id/sections/:section/submit
func (h *MockTestHandler) SubmitSection(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}
	section, ok := h.parseSectionParam(c)
	if !ok {
		return
	}

	var req *services.SubmitSectionRequest
	var err error
	if section == models.ModuleSpeaking {
		req, err = h.parseSpeakingForm(c)
	} else {
		req = &services.SubmitSectionRequest{}
		err = c.ShouldBindJSON(req)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.mockTests.SubmitSection(c.Request.Context(), testID, callerID, section, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "section submitted",
		"test_id", testID,
		"section", section,
		"is_test_complete", resp.IsTestComplete)
	c.JSON(http.StatusOK, SuccessResponse{Data: resp, Message: "Section submitted"})
}

// AbandonTest terminates an in-progress test without scoring.
// POST /api/v1/mock-tests/:id/abandon
func (h *MockTestHandler) AbandonTest(c *gin.Context) {
	callerID, ok := h.callerID(c)
	if !ok {
		return
	}
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	if err := h.mockTests.Abandon(c.Request.Context(), testID, callerID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "mock test abandoned", "test_id", testID)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Mock test abandoned"})
}

func (h *MockTestHandler) parseSectionParam(c *gin.Context) (models.TestModule, bool) {
	section := models.TestModule(c.Param("section"))
	switch section {
	case models.ModuleListening, models.ModuleReading, models.ModuleWriting, models.ModuleSpeaking:
		return section, true
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid section parameter",
			Details: "section must be one of: listening, reading, writing, speaking",
		})
		return "", false
	}
}

// parseSpeakingForm reads the multipart speaking submission: audio files under
// part_1..part_3, plus optional content_id and time_spent_seconds fields.
func (h *MockTestHandler) parseSpeakingForm(c *gin.Context) (*services.SubmitSectionRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	req := &services.SubmitSectionRequest{}

	if raw := c.PostForm("content_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid content_id: %w", err)
		}
		contentID := uint(id)
		req.ContentID = &contentID
	}
	if raw := c.PostForm("time_spent_seconds"); raw != "" {
		spent, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid time_spent_seconds: %w", err)
		}
		req.TimeSpentSeconds = spent
	}

	for part := 1; part <= 3; part++ {
		files, ok := form.File[fmt.Sprintf("part_%d", part)]
		if !ok || len(files) == 0 {
			continue
		}
		file, err := files[0].Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open audio for part %d: %w", part, err)
		}
		req.AudioParts = append(req.AudioParts, services.AudioPart{
			Part:     part,
			Filename: files[0].Filename,
			Data:     file,
		})
	}

	return req, nil
}

// handleServiceError maps service errors to HTTP status codes.
func (h *MockTestHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Permission denied",
			Details: permErr.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrTestNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Mock test not found"})
	case errors.Is(err, services.ErrInvalidTestState):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Test is not in progress"})
	case errors.Is(err, services.ErrWrongSection):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Section does not match the test's current section"})
	case errors.Is(err, services.ErrContentUnavailable):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "No content available for this section"})
	case errors.Is(err, services.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "A submission for this section is already being evaluated"})
	case errors.Is(err, services.ErrActiveTestExists):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "An in-progress mock test already exists"})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized"})
	default:
		utils.GetLogger(c, h.logger).Error("unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func parseListQuery(c *gin.Context) (*services.ListTestsRequest, error) {
	req := &services.ListTestsRequest{}

	if raw := c.Query("status"); raw != "" {
		status := models.TestStatus(raw)
		switch status {
		case models.TestInProgress, models.TestCompleted, models.TestAbandoned:
			req.Status = &status
		default:
			return nil, fmt.Errorf("invalid status %q", raw)
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from: %w", err)
		}
		req.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date_to: %w", err)
		}
		req.DateTo = &to
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid limit: %w", err)
		}
		req.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid offset: %w", err)
		}
		req.Offset = offset
	}

	return req, nil
}
