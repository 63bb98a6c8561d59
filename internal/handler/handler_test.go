package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/middleware"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/quizroom/quizroom-backend/internal/validator"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// fakeReview implements ReviewService with overridable transition results.
type fakeReview struct {
	ReviewService
	assignTo    func(questionID, assignee, actor int64) (bool, error)
	canUnassign bool
	unassigned  bool
	changeState func(to model.QuestionState) (bool, error)
}

func (f *fakeReview) AssignTo(_ context.Context, questionID, assignee, actor int64) (bool, error) {
	return f.assignTo(questionID, assignee, actor)
}

func (f *fakeReview) CanBeUnassigned(context.Context, int64, int64, bool) (bool, error) {
	return f.canUnassign, nil
}

func (f *fakeReview) Unassign(context.Context, int64, int64) (bool, error) {
	f.unassigned = true
	return true, nil
}

func (f *fakeReview) ChangeState(_ context.Context, _ int64, to model.QuestionState, _ int64, _ string) (bool, error) {
	return f.changeState(to)
}

type fakeAttempts struct {
	AttemptService
	takeErr   error
	submitErr error
	submitted *int64
}

func (f *fakeAttempts) Take(_ context.Context, id uuid.UUID, _ int64, index int) (*model.AttemptQuestion, error) {
	if f.takeErr != nil {
		return nil, f.takeErr
	}
	return &model.AttemptQuestion{AttemptID: id, Index: index, TotalQuestions: 3}, nil
}

func (f *fakeAttempts) SubmitSingle(_ context.Context, _ uuid.UUID, _ int64, index int, selected *int64) (*model.SubmitResult, error) {
	f.submitted = selected
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &model.SubmitResult{NextIndex: index + 1}, nil
}

func withClaims(role model.Role, userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{
			UserID:      userID,
			Role:        role,
			Permissions: model.PermissionsFor(role),
		})
		c.Next()
	}
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestAssignOnlyAdminsAssignOthers(t *testing.T) {
	var gotAssignee int64
	review := &fakeReview{assignTo: func(_, assignee, _ int64) (bool, error) {
		gotAssignee = assignee
		return true, nil
	}}
	h := NewQuestionHandler(nil, review, zerolog.Nop())

	tests := []struct {
		name         string
		role         model.Role
		body         string
		wantStatus   int
		wantAssignee int64
	}{
		{"self assign without body", model.RoleTeacher, "", http.StatusOK, 10},
		{"teacher assigning someone else", model.RoleTeacher, `{"user_id":99}`, http.StatusForbidden, 0},
		{"admin assigning someone else", model.RoleAdmin, `{"user_id":99}`, http.StatusOK, 99},
		{"explicit self", model.RoleTeacher, `{"user_id":10}`, http.StatusOK, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAssignee = 0
			r := gin.New()
			r.POST("/questions/:id/assign", withClaims(tt.role, 10), h.Assign)

			w, _ := do(r, http.MethodPost, "/questions/5/assign", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if gotAssignee != tt.wantAssignee {
				t.Fatalf("assignee = %d, want %d", gotAssignee, tt.wantAssignee)
			}
		})
	}
}

func TestRejectedTransitionIsConflict(t *testing.T) {
	review := &fakeReview{
		assignTo: func(int64, int64, int64) (bool, error) { return false, nil },
		changeState: func(to model.QuestionState) (bool, error) {
			return to.Valid(), nil
		},
	}
	h := NewQuestionHandler(nil, review, zerolog.Nop())
	r := gin.New()
	r.POST("/questions/:id/assign", withClaims(model.RoleAdmin, 1), h.Assign)
	r.POST("/questions/:id/state", withClaims(model.RoleAdmin, 1), h.ChangeState)

	w, env := do(r, http.MethodPost, "/questions/5/assign", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("assign status = %d, want 409", w.Code)
	}
	if env.Error == nil || env.Error.Code != response.ErrTransitionRejected {
		t.Fatalf("assign error = %+v", env.Error)
	}

	w, _ = do(r, http.MethodPost, "/questions/5/state", `{"state":"archived"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("unknown state status = %d, want 409", w.Code)
	}

	w, _ = do(r, http.MethodPost, "/questions/5/state", `{"state":"done","notes":"ok"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("valid state status = %d, want 200", w.Code)
	}
}

func TestAssignUnknownUserIsNotFound(t *testing.T) {
	review := &fakeReview{assignTo: func(int64, int64, int64) (bool, error) {
		return false, service.ErrUserNotFound
	}}
	h := NewQuestionHandler(nil, review, zerolog.Nop())
	r := gin.New()
	r.POST("/questions/:id/assign", withClaims(model.RoleAdmin, 1), h.Assign)

	w, env := do(r, http.MethodPost, "/questions/5/assign", `{"user_id":404}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (%s)", w.Code, w.Body.String())
	}
	if env.Error == nil || env.Error.Code != response.ErrNotFound {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestUnassignChecksPermissionFirst(t *testing.T) {
	review := &fakeReview{canUnassign: false}
	h := NewQuestionHandler(nil, review, zerolog.Nop())
	r := gin.New()
	r.POST("/questions/:id/unassign", withClaims(model.RoleTeacher, 3), h.Unassign)

	w, env := do(r, http.MethodPost, "/questions/5/unassign", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if env.Error == nil || env.Error.Code != response.ErrActionForbidden {
		t.Fatalf("error = %+v", env.Error)
	}
	if review.unassigned {
		t.Fatal("Unassign must not run when the caller may not unassign")
	}

	review.canUnassign = true
	w, _ = do(r, http.MethodPost, "/questions/5/unassign", "")
	if w.Code != http.StatusOK || !review.unassigned {
		t.Fatalf("status = %d, unassigned = %v", w.Code, review.unassigned)
	}
}

func TestTakeErrors(t *testing.T) {
	attemptID := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   response.ErrCode
		wantHint   bool
	}{
		{"past the last question", &service.RangeError{Index: 3, Total: 3}, http.StatusBadRequest, response.ErrIndexOutOfRange, true},
		{"negative index", &service.RangeError{Index: -1, Total: 3}, http.StatusBadRequest, response.ErrIndexOutOfRange, false},
		{"expired", fmt.Errorf("take: %w", service.ErrAttemptExpired), http.StatusConflict, response.ErrAttemptExpired, false},
		{"closed", service.ErrAttemptClosed, http.StatusConflict, response.ErrAttemptClosed, false},
		{"foreign attempt", service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound, false},
		{"corrupted", service.ErrAttemptCorrupted, http.StatusInternalServerError, response.ErrAttemptCorrupted, false},
		{"storage failure", fmt.Errorf("boom"), http.StatusInternalServerError, response.ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAttemptHandler(&fakeAttempts{takeErr: tt.err}, zerolog.Nop())
			r := gin.New()
			r.GET("/attempts/:id/questions/:index", withClaims(model.RoleStudent, 4), h.Take)

			w, env := do(r, http.MethodGet, "/attempts/"+attemptID.String()+"/questions/3", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Fatalf("error = %+v, want %s", env.Error, tt.wantCode)
			}

			data, _ := env.Data.(map[string]interface{})
			if tt.wantHint {
				if data["next"] != "finish" || data["total_questions"] != float64(3) {
					t.Fatalf("hint = %v", data)
				}
			} else if data != nil {
				t.Fatalf("unexpected data %v", data)
			}
		})
	}
}

func TestTakeRejectsBadParams(t *testing.T) {
	h := NewAttemptHandler(&fakeAttempts{}, zerolog.Nop())
	r := gin.New()
	r.GET("/attempts/:id/questions/:index", withClaims(model.RoleStudent, 4), h.Take)

	w, _ := do(r, http.MethodGet, "/attempts/not-a-uuid/questions/0", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid status = %d", w.Code)
	}
	w, _ = do(r, http.MethodGet, "/attempts/"+uuid.NewString()+"/questions/x", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad index status = %d", w.Code)
	}
	w, _ = do(r, http.MethodGet, "/attempts/"+uuid.NewString()+"/questions/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("valid status = %d", w.Code)
	}
}

func TestSubmitSkipAndSelect(t *testing.T) {
	fake := &fakeAttempts{}
	h := NewAttemptHandler(fake, zerolog.Nop())
	r := gin.New()
	r.POST("/attempts/:id/questions/:index", withClaims(model.RoleStudent, 4), h.Submit)
	path := "/attempts/" + uuid.NewString() + "/questions/1"

	w, env := do(r, http.MethodPost, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("skip status = %d", w.Code)
	}
	if fake.submitted != nil {
		t.Fatalf("skip submitted %d", *fake.submitted)
	}
	data, _ := env.Data.(map[string]interface{})
	if data["next_index"] != float64(2) {
		t.Fatalf("next_index = %v", data["next_index"])
	}

	w, _ = do(r, http.MethodPost, path, `{"selected_option_id":42}`)
	if w.Code != http.StatusOK || fake.submitted == nil || *fake.submitted != 42 {
		t.Fatalf("select status = %d, submitted = %v", w.Code, fake.submitted)
	}

	w, _ = do(r, http.MethodPost, path, `{"selected_option_id":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative option status = %d", w.Code)
	}

	fake.submitErr = model.ErrOptionMismatch
	w, env = do(r, http.MethodPost, path, `{"selected_option_id":7}`)
	if w.Code != http.StatusUnprocessableEntity || env.Error.Code != response.ErrOptionMismatch {
		t.Fatalf("mismatch status = %d, error = %+v", w.Code, env.Error)
	}
}

func TestHandlersRequireClaims(t *testing.T) {
	h := NewAttemptHandler(&fakeAttempts{}, zerolog.Nop())
	r := gin.New()
	r.GET("/attempts/:id/questions/:index", h.Take)

	w, env := do(r, http.MethodGet, "/attempts/"+uuid.NewString()+"/questions/0", "")
	if w.Code != http.StatusUnauthorized || env.Error.Code != response.ErrTokenRequired {
		t.Fatalf("status = %d, error = %+v", w.Code, env.Error)
	}
}
