package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler handles the student side of taking a quiz.
type AttemptHandler struct {
	attemptService AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/quizzes/:id/attempts
// Opens an attempt, or returns the student's running one.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, attempt)
}

// List godoc
// GET /api/v1/attempts
func (h *AttemptHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	attempts, err := h.attemptService.ListAttempts(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// Take godoc
// GET /api/v1/attempts/:id/questions/:index
func (h *AttemptHandler) Take(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	view, err := h.attemptService.Take(c.Request.Context(), attemptID, claims.UserID, index)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Submit godoc
// POST /api/v1/attempts/:id/questions/:index
// Body {"selected_option_id": n}; omit the option to skip.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.attemptService.SubmitSingle(c.Request.Context(), attemptID, claims.UserID, index, req.SelectedOptionID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ToggleFlag godoc
// POST /api/v1/attempts/:id/questions/:index/flag
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}
	index, ok := paramIndex(c)
	if !ok {
		return
	}

	ans, err := h.attemptService.ToggleFlag(c.Request.Context(), attemptID, claims.UserID, index)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_flagged": ans.IsFlagged, "answer": ans})
}

// Resume godoc
// GET /api/v1/attempts/:id/resume
func (h *AttemptHandler) Resume(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}

	index, err := h.attemptService.Resume(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"index": index})
}

// Finish godoc
// POST /api/v1/attempts/:id/finish
func (h *AttemptHandler) Finish(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Finish(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, attempt)
}

// Review godoc
// GET /api/v1/attempts/:id/review
func (h *AttemptHandler) Review(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}

	review, err := h.attemptService.Review(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, review)
}
