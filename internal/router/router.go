package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/handler"
	"github.com/quizroom/quizroom-backend/internal/middleware"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Question *handler.QuestionHandler
	Quiz     *handler.QuizHandler
	Attempt  *handler.AttemptHandler
	Explorer *handler.ExplorerHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// loginLimiter may be nil to disable login throttling.
func SetupRouter(
	tokens middleware.TokenValidator,
	handlers *Handlers,
	loginLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.ReleaseMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// XLSX files are already zip compressed.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.FullPath(), "/explorer/export")
		},
	}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		login := []gin.HandlerFunc{handlers.Auth.Login}
		if loginLimiter != nil {
			login = append([]gin.HandlerFunc{loginLimiter.Middleware()}, login...)
		}
		auth.POST("/login", login...)
		auth.GET("/me", middleware.RequireJWT(tokens), handlers.Auth.Me)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(tokens))

	// ─── 2. Question authoring and review ──────────────────────────────
	questions := api.Group("/questions")
	{
		questions.POST("",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.Create,
		)
		questions.GET("",
			middleware.RequirePermission(model.PermissionQuestionsReview),
			handlers.Question.List,
		)
		questions.GET("/:id",
			middleware.RequireAnyPermission(model.PermissionQuestionsWrite, model.PermissionQuestionsReview),
			handlers.Question.Get,
		)
		questions.GET("/:id/history",
			middleware.RequirePermission(model.PermissionQuestionsReview),
			handlers.Question.History,
		)
		questions.POST("/:id/assign",
			middleware.RequirePermission(model.PermissionQuestionsReview),
			handlers.Question.Assign,
		)
		questions.POST("/:id/unassign",
			middleware.RequirePermission(model.PermissionQuestionsReview),
			handlers.Question.Unassign,
		)
		questions.GET("/:id/can-unassign",
			middleware.RequirePermission(model.PermissionQuestionsReview),
			handlers.Question.CanUnassign,
		)
		questions.POST("/:id/state",
			middleware.RequirePermission(model.PermissionQuestionsOverride),
			handlers.Question.ChangeState,
		)
	}

	// ─── 3. Quizzes ────────────────────────────────────────────────────
	quizzes := api.Group("/quizzes")
	{
		quizzes.POST("",
			middleware.RequirePermission(model.PermissionQuizzesWrite),
			handlers.Quiz.Create,
		)
		quizzes.GET("/:id",
			middleware.RequirePermission(model.PermissionQuizzesRead),
			handlers.Quiz.Get,
		)
		quizzes.POST("/:id/attempts",
			middleware.RequirePermission(model.PermissionQuizzesTake),
			middleware.NoStore(),
			handlers.Attempt.Start,
		)
	}

	// ─── 4. Attempts (student) ─────────────────────────────────────────
	attempts := api.Group("/attempts")
	attempts.Use(
		middleware.RequirePermission(model.PermissionQuizzesTake),
		middleware.NoStore(),
	)
	{
		attempts.GET("", handlers.Attempt.List)
		attempts.GET("/:id/questions/:index", handlers.Attempt.Take)
		attempts.POST("/:id/questions/:index", handlers.Attempt.Submit)
		attempts.POST("/:id/questions/:index/flag", handlers.Attempt.ToggleFlag)
		attempts.GET("/:id/resume", handlers.Attempt.Resume)
		attempts.POST("/:id/finish", handlers.Attempt.Finish)
		attempts.GET("/:id/review", handlers.Attempt.Review)
	}

	// ─── 5. Explorer (admin reports) ───────────────────────────────────
	explorer := api.Group("/explorer")
	explorer.Use(middleware.RequirePermission(model.PermissionExplorerRead))
	{
		explorer.GET("/relationships", handlers.Explorer.List)
		explorer.GET("/summary", middleware.CacheControl(cfg.ExplorerCacheTTL), handlers.Explorer.Summary)
		explorer.GET("/export", handlers.Explorer.Export)
	}

	// ─── 6. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(tokens),
		middleware.RequirePermission(model.PermissionQuizzesTake),
	)
	{
		ws.GET("/attempts/:id/timer", handlers.WS.AttemptTimer)
	}

	return router
}
