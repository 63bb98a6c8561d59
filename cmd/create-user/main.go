package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/logger"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	reset := flag.Bool("reset", false, "Reset the password of an existing user instead of creating one")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, database.PoolOptions{URL: cfg.DatabaseURL, MaxConns: 2}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	authService := service.NewAuthService(cfg, pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	if *reset {
		fmt.Println("=== Reset User Password ===")
	} else {
		fmt.Println("=== Create New User ===")
	}

	var name string
	if !*reset {
		fmt.Print("Enter Name: ")
		name, _ = reader.ReadString('\n')
		name = strings.TrimSpace(name)
		if name == "" {
			fmt.Println("Error: Name is required")
			return
		}
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	if *reset {
		if err := authService.ResetPassword(ctx, email, password); err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				fmt.Printf("Error: no user with email %s\n", email)
				return
			}
			log.Fatal().Err(err).Msg("Failed to reset password")
		}
		fmt.Printf("\nSuccess! Password for %s updated.\n", email)
		return
	}

	// Role
	fmt.Print("Enter Role (admin/teacher/student, default admin): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.RoleAdmin
	if roleStr = strings.ToLower(strings.TrimSpace(roleStr)); roleStr != "" {
		role = model.Role(roleStr)
		if !role.Valid() {
			fmt.Println("Error: Role must be admin, teacher or student")
			return
		}
	}

	user, err := authService.CreateUser(ctx, name, email, password, role)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			fmt.Printf("Error: %s is already registered (use -reset to change its password)\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", user.Role, user.Name, user.Email, user.ID)
}
