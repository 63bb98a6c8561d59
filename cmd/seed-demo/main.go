package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/logger"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/service"
)

type seedQuestion struct {
	text    string
	options []string
	correct int
	tags    []string
}

var seedSubjects = map[string][]seedQuestion{
	"Mathematics": {
		{"What is 7 x 8?", []string{"54", "56", "64", "48"}, 1, []string{"arithmetic"}},
		{"What is the derivative of x^2?", []string{"x", "2x", "x^2", "2"}, 1, []string{"calculus"}},
		{"Solve for x: 2x + 3 = 11", []string{"3", "4", "5", "7"}, 1, []string{"algebra"}},
		{"How many degrees are in a triangle?", []string{"90", "180", "270", "360"}, 1, []string{"geometry"}},
	},
	"Physics": {
		{"What is the SI unit of force?", []string{"Joule", "Watt", "Newton", "Pascal"}, 2, []string{"mechanics"}},
		{"What does E = mc^2 relate?", []string{"Energy and mass", "Force and mass", "Power and time"}, 0, []string{"relativity"}},
		{"Which quantity is a vector?", []string{"Speed", "Mass", "Velocity", "Temperature"}, 2, []string{"mechanics", "algebra"}},
	},
	"History": {},
}

// orphanTags exist so the relationship explorer has something to report.
var orphanTags = []string{"archived", "draft"}

func main() {
	students := flag.Int("students", 20, "Number of student accounts to create")
	password := flag.String("password", "quizroom123", "Password for every seeded account")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, database.PoolOptions{URL: cfg.DatabaseURL, MaxConns: 4}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&existing); err != nil {
		log.Fatal().Err(err).Msg("Failed to check existing subjects")
	}
	if existing > 0 {
		fmt.Println("Database already has subjects. Seed expects an empty schema; aborting.")
		return
	}

	authService := service.NewAuthService(cfg, pool)
	questionService := service.NewQuestionService(pool, log)
	quizService := service.NewQuizService(pool, log)
	subjects := repository.NewSubjectRepository(pool)

	fmt.Println("=== Seeding Quizroom Demo Data ===")

	// ─── Accounts ──────────────────────────────────────────────────────
	teacher, err := authService.CreateUser(ctx, "Demo Teacher", "teacher@quizroom.local", *password, model.RoleTeacher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create teacher")
	}

	successCount := 0
	for i := 0; i < *students; i++ {
		email := fmt.Sprintf("student%d@quizroom.local", i+1)
		_, err := authService.CreateUser(ctx, fmt.Sprintf("Student %02d", i+1), email, *password, model.RoleStudent)
		if err != nil {
			if errors.Is(err, service.ErrEmailTaken) {
				continue
			}
			fmt.Printf("Error creating student %s: %v\n", email, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}
	fmt.Printf("Created %d/%d students.\n", successCount, *students)

	// ─── Tags ──────────────────────────────────────────────────────────
	tagIDs := make(map[string]int64)
	ensureTag := func(text string) int64 {
		if id, ok := tagIDs[text]; ok {
			return id
		}
		tag := &model.Tag{TagText: text}
		if err := subjects.CreateTag(ctx, tag); err != nil {
			log.Fatal().Err(err).Str("tag", text).Msg("Failed to create tag")
		}
		tagIDs[text] = tag.ID
		return tag.ID
	}
	for _, text := range orphanTags {
		ensureTag(text)
	}

	// ─── Subjects, questions and quizzes ──────────────────────────────
	for name, questions := range seedSubjects {
		subject := &model.Subject{Name: name}
		if err := subjects.CreateSubject(ctx, subject); err != nil {
			log.Fatal().Err(err).Str("subject", name).Msg("Failed to create subject")
		}

		var questionIDs []int64
		for _, q := range questions {
			req := model.CreateQuestionRequest{
				SubjectID:    subject.ID,
				QuestionText: q.text,
				Explanations: model.Explanations{
					"correct": "Well done.",
					"wrong":   fmt.Sprintf("The answer is %s.", q.options[q.correct]),
				},
			}
			for i, text := range q.options {
				req.Options = append(req.Options, model.OptionInput{OptionText: text, IsCorrect: i == q.correct})
			}
			for _, tag := range q.tags {
				id := ensureTag(tag)
				req.TagIDs = append(req.TagIDs, id)
				if err := subjects.LinkTag(ctx, subject.ID, id); err != nil {
					log.Fatal().Err(err).Msg("Failed to link tag")
				}
			}

			created, err := questionService.CreateQuestion(ctx, req, teacher.ID)
			if err != nil {
				log.Fatal().Err(err).Str("question", q.text).Msg("Failed to create question")
			}
			questionIDs = append(questionIDs, created.ID)
		}

		if len(questionIDs) == 0 {
			fmt.Printf("Subject %s left without questions or tags.\n", name)
			continue
		}

		limit := 10
		subjectID := subject.ID
		quiz, err := quizService.CreateQuiz(ctx, model.CreateQuizRequest{
			Title:            name + " warm-up",
			Mode:             string(model.QuizModeBySubject),
			SubjectID:        &subjectID,
			TimeLimitMinutes: &limit,
			QuestionIDs:      questionIDs,
		}, teacher.ID)
		if err != nil {
			log.Fatal().Err(err).Str("subject", name).Msg("Failed to create quiz")
		}
		fmt.Printf("Subject %s: %d questions, quiz #%d\n", name, len(questionIDs), quiz.ID)
	}

	fmt.Println("\nSeed completed! Log in as teacher@quizroom.local or student1@quizroom.local.")
}
