package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/rs/zerolog"
)

// failFromError maps service errors onto API error codes. Anything
// unrecognised is logged and reported as an internal error.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	var rangeErr *service.RangeError

	switch {
	case errors.As(err, &rangeErr):
		if rangeErr.PastEnd() {
			response.FailWithData(c, http.StatusBadRequest, response.ErrIndexOutOfRange, gin.H{
				"next":            "finish",
				"total_questions": rangeErr.Total,
			})
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)

	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrSubjectNotFound),
		errors.Is(err, service.ErrTagNotFound),
		errors.Is(err, service.ErrUnknownQuestion),
		errors.Is(err, service.ErrDuplicateQuestion):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, map[string]string{"detail": err.Error()})
	case errors.Is(err, model.ErrOptionCount),
		errors.Is(err, model.ErrCorrectOptionCount),
		errors.Is(err, model.ErrEmptyOptionText),
		errors.Is(err, model.ErrExplanationKey):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrInvalidOptions, map[string]string{"options": err.Error()})

	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
	case errors.Is(err, service.ErrQuizEmpty):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuizEmpty)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrAttemptClosed):
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
	case errors.Is(err, service.ErrAttemptExpired):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExpired)
	case errors.Is(err, service.ErrAttemptOpen):
		response.Fail(c, http.StatusConflict, response.ErrAttemptOpen)
	case errors.Is(err, model.ErrOptionMismatch):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrOptionMismatch)
	case errors.Is(err, service.ErrAttemptCorrupted):
		log.Error().Err(err).Msg("Attempt integrity violation")
		response.Fail(c, http.StatusInternalServerError, response.ErrAttemptCorrupted)

	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)

	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
