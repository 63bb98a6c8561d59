package handler

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
)

// The interfaces below are the slices of the service layer each handler
// calls. The concrete services in internal/service satisfy them.

type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type ReviewService interface {
	AssignTo(ctx context.Context, questionID, assignee, actor int64) (bool, error)
	CanBeUnassigned(ctx context.Context, questionID, userID int64, isAdmin bool) (bool, error)
	Unassign(ctx context.Context, questionID, actor int64) (bool, error)
	ChangeState(ctx context.Context, questionID int64, to model.QuestionState, actor int64, notes string) (bool, error)
	History(ctx context.Context, questionID int64) ([]model.QuestionStateHistory, error)
	ReviewQueue(ctx context.Context, f model.ReviewQueueFilter) ([]model.Question, *response.Pagination, error)
}

type QuestionService interface {
	CreateQuestion(ctx context.Context, req model.CreateQuestionRequest, actor int64) (*model.Question, error)
	GetQuestion(ctx context.Context, id int64) (*model.Question, error)
}

type QuizService interface {
	CreateQuiz(ctx context.Context, req model.CreateQuizRequest, actor int64) (*model.Quiz, error)
	GetQuiz(ctx context.Context, id int64) (*model.Quiz, error)
}

type AttemptService interface {
	Start(ctx context.Context, quizID, studentID int64) (*model.Attempt, error)
	Take(ctx context.Context, attemptID uuid.UUID, studentID int64, index int) (*model.AttemptQuestion, error)
	SubmitSingle(ctx context.Context, attemptID uuid.UUID, studentID int64, index int, selected *int64) (*model.SubmitResult, error)
	ToggleFlag(ctx context.Context, attemptID uuid.UUID, studentID int64, index int) (*model.Answer, error)
	Resume(ctx context.Context, attemptID uuid.UUID, studentID int64) (int, error)
	Finish(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.Attempt, error)
	Review(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.AttemptReview, error)
	ListAttempts(ctx context.Context, studentID int64) ([]model.Attempt, error)
	Timer(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.TimerSnapshot, error)
}

type ExplorerService interface {
	List(ctx context.Context, f model.RelationshipFilter) ([]model.Relationship, *response.Pagination, error)
	Summary(ctx context.Context, topN int) (*model.RelationshipSummary, error)
	ExportXLSX(ctx context.Context, f model.RelationshipFilter, w io.Writer) error
}
