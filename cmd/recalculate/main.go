package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prolean/ProleanBack/internal/config"
	"github.com/prolean/ProleanBack/internal/database"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/internal/services"
	"github.com/prolean/ProleanBack/pkg/logger"
)

// recalculate recomputes total_amount_due from the current prices of the
// authorized trainings, for every student or for the one given by -student.
func main() {
	studentID, err := parseFlags(os.Args[1:], os.Stderr)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, database.DefaultPoolOptions())
	if err != nil {
		log.Fatal("failed to connect to database", logger.Err(err))
	}
	defer pool.Close()

	enrollment := services.NewEnrollmentService(
		pool,
		repository.NewTransactor(pool),
		cfg.Site.DefaultCurrency,
		log,
		nil,
	)

	if studentID > 0 {
		total, err := enrollment.RecomputeDue(ctx, studentID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				log.Error("student not found", logger.Int64("student_id", studentID))
				os.Exit(1)
			}
			log.Error("recalculation failed", logger.Int64("student_id", studentID), logger.Err(err))
			os.Exit(1)
		}
		log.Info("student total recalculated",
			logger.Int64("student_id", studentID),
			logger.Float64("total", total),
		)
		return
	}

	started := time.Now()
	log.Info("recalculating student totals")
	updated, err := enrollment.RecalculateAll(ctx)
	if err != nil {
		log.Error("recalculation stopped", logger.Int("updated", updated), logger.Err(err))
		os.Exit(1)
	}
	log.Info("recalculation finished",
		logger.Int("updated", updated),
		logger.Duration("elapsed", time.Since(started)),
	)
}

// parseFlags returns the student to recompute, or 0 for every student.
func parseFlags(args []string, output io.Writer) (int64, error) {
	fs := flag.NewFlagSet("recalculate", flag.ContinueOnError)
	fs.SetOutput(output)
	studentID := fs.Int64("student", 0, "recompute only this student profile id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if fs.NArg() > 0 {
		return 0, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *studentID < 0 {
		return 0, fmt.Errorf("student id must be positive, got %d", *studentID)
	}
	return *studentID, nil
}
