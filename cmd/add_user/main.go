package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prolean/ProleanBack/internal/config"
	"github.com/prolean/ProleanBack/internal/database"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/internal/services"
	"github.com/prolean/ProleanBack/pkg/logger"
)

// add_user creates an account directly, bypassing self-registration, so the
// first admin and staff accounts can be bootstrapped.
func main() {
	input, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.New(os.Stderr, logger.LevelInfo).Fatal("invalid arguments", logger.Err(err))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New(os.Stderr, logger.LevelInfo).Fatal("failed to load config", logger.Err(err))
	}
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, database.DefaultPoolOptions())
	if err != nil {
		log.Fatal("failed to connect to database", logger.Err(err))
	}
	defer pool.Close()

	identity := services.NewIdentityService(pool, repository.NewTransactor(pool), cfg.JWTSecret, log, nil)
	account, err := identity.CreateAccount(ctx, input)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			log.Error("an account with this email or phone already exists", logger.String("email", input.Email))
			os.Exit(1)
		}
		log.Error("failed to create account", logger.Err(err))
		os.Exit(1)
	}

	log.Info("account created",
		logger.Int64("user_id", account.User.ID),
		logger.String("email", account.User.Email),
		logger.String("role", string(account.Profile.Role)),
		logger.String("status", string(account.Profile.Status)),
	)
}

func parseFlags(args []string, output io.Writer) (services.AccountInput, error) {
	fs := flag.NewFlagSet("add_user", flag.ContinueOnError)
	fs.SetOutput(output)

	email := fs.String("email", "", "account email (required)")
	password := fs.String("password", "", "account password, at least 8 characters (required)")
	fullName := fs.String("name", "", "full name (required)")
	phone := fs.String("phone", "", "phone number")
	role := fs.String("role", string(models.RoleStudent), "STUDENT, PROFESSOR, ASSISTANT or ADMIN")
	status := fs.String("status", string(models.StatusActive), "PENDING, ACTIVE or SUSPENDED")
	cityID := fs.Int64("city", 0, "city id")

	if err := fs.Parse(args); err != nil {
		return services.AccountInput{}, err
	}

	if strings.TrimSpace(*email) == "" || *password == "" || strings.TrimSpace(*fullName) == "" {
		return services.AccountInput{}, errors.New("-email, -password and -name are required")
	}

	parsedRole := models.Role(strings.ToUpper(strings.TrimSpace(*role)))
	switch parsedRole {
	case models.RoleStudent, models.RoleProfessor, models.RoleAssistant, models.RoleAdmin:
	default:
		return services.AccountInput{}, errors.New("unknown role " + *role)
	}

	parsedStatus := models.ProfileStatus(strings.ToUpper(strings.TrimSpace(*status)))
	switch parsedStatus {
	case models.StatusPending, models.StatusActive, models.StatusSuspended:
	default:
		return services.AccountInput{}, errors.New("unknown status " + *status)
	}

	input := services.AccountInput{
		RegisterInput: services.RegisterInput{
			Email:    strings.TrimSpace(*email),
			Password: *password,
			FullName: strings.TrimSpace(*fullName),
		},
		Role:   parsedRole,
		Status: parsedStatus,
	}
	if trimmed := strings.TrimSpace(*phone); trimmed != "" {
		input.PhoneNumber = &trimmed
	}
	if *cityID > 0 {
		input.CityID = cityID
	}
	return input, nil
}
