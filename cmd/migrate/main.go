package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/prolean/ProleanBack/pkg/logger"
)

func main() {
	log := logger.New(os.Stdout, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrations()
	if err != nil {
		log.Fatal("migrations directory not found", logger.Err(err))
	}

	m, err := migrate.New("file://"+migrationsPath, dbUrl)
	if err != nil {
		log.Fatal("failed to open migrations", logger.Err(err))
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatal("unknown command, expected up or down", logger.String("command", cmd))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("migration failed", logger.String("command", cmd), logger.Err(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal("failed to read schema version", logger.Err(err))
	}
	log.Info("migration finished",
		logger.String("command", cmd),
		logger.Int64("version", int64(version)),
		logger.Bool("dirty", dirty),
	)
}

// findMigrations looks upward from the working directory and next to the
// executable, so the command works from the repo root and from a build dir.
func findMigrations() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	candidates := []string{}
	current := cwd
	for i := 0; i < 6; i++ {
		candidates = append(candidates, filepath.Join(current, "migrations"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("no migrations directory in search path")
}
