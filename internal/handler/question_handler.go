package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/middleware"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/validator"
	"github.com/rs/zerolog"
)

// QuestionHandler handles question authoring and the review workflow.
type QuestionHandler struct {
	questionService QuestionService
	reviewService   ReviewService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService QuestionService, reviewService ReviewService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		reviewService:   reviewService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/questions
func (h *QuestionHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.CreateQuestion(c.Request.Context(), req, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, q)
}

// List godoc
// GET /api/v1/questions?state=&assigned_to=&mine=&subject_id=&page=&per_page=
// The review queue.
func (h *QuestionHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var q model.ReviewQueueQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, pagination, err := h.reviewService.ReviewQueue(c.Request.Context(), q.Filter(claims.UserID))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, questions, pagination)
}

// Get godoc
// GET /api/v1/questions/:id
func (h *QuestionHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	q, err := h.questionService.GetQuestion(c.Request.Context(), id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// History godoc
// GET /api/v1/questions/:id/history
func (h *QuestionHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	history, err := h.reviewService.History(c.Request.Context(), id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": history})
}

// Assign godoc
// POST /api/v1/questions/:id/assign
// Assigns the question to user_id, or to the caller when omitted. Only
// admins may assign to someone else.
func (h *QuestionHandler) Assign(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.AssignRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	assignee := claims.UserID
	if req.UserID != 0 && req.UserID != claims.UserID {
		if !middleware.IsAdmin(c) {
			response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}
		assignee = req.UserID
	}

	applied, err := h.reviewService.AssignTo(c.Request.Context(), id, assignee, claims.UserID)
	h.transitionResult(c, applied, err)
}

// Unassign godoc
// POST /api/v1/questions/:id/unassign
func (h *QuestionHandler) Unassign(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	allowed, err := h.reviewService.CanBeUnassigned(c.Request.Context(), id, claims.UserID, middleware.IsAdmin(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	if !allowed {
		response.Fail(c, http.StatusForbidden, response.ErrActionForbidden)
		return
	}

	applied, err := h.reviewService.Unassign(c.Request.Context(), id, claims.UserID)
	h.transitionResult(c, applied, err)
}

// CanUnassign godoc
// GET /api/v1/questions/:id/can-unassign
func (h *QuestionHandler) CanUnassign(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	allowed, err := h.reviewService.CanBeUnassigned(c.Request.Context(), id, claims.UserID, middleware.IsAdmin(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"can_unassign": allowed})
}

// ChangeState godoc
// POST /api/v1/questions/:id/state
// Admin override into any review state.
func (h *QuestionHandler) ChangeState(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.ChangeStateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	applied, err := h.reviewService.ChangeState(c.Request.Context(), id, model.QuestionState(req.State), claims.UserID, req.Notes)
	h.transitionResult(c, applied, err)
}

// transitionResult answers 200 when the transition happened and 409 when its
// precondition did not hold.
func (h *QuestionHandler) transitionResult(c *gin.Context, applied bool, err error) {
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	if !applied {
		response.FailWithData(c, http.StatusConflict, response.ErrTransitionRejected, gin.H{"applied": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"applied": true})
}
