package routes

import (
	"errors"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prolean/ProleanBack/internal/cache"
	"github.com/prolean/ProleanBack/internal/config"
	"github.com/prolean/ProleanBack/internal/handlers"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/middleware"
	"github.com/prolean/ProleanBack/internal/repository"
	"github.com/prolean/ProleanBack/internal/services"
	notifyws "github.com/prolean/ProleanBack/internal/websocket"
	"github.com/prolean/ProleanBack/pkg/logger"
)

// Deps are built once in cmd/server. Cache and Metrics are optional.
type Deps struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	Cache   *cache.CatalogCache
	Hub     *notifyws.Hub
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

func RegisterRoutes(app *fiber.App, deps Deps) error {
	if deps.Config == nil || deps.DB == nil || deps.Hub == nil {
		return errors.New("routes: config, database and hub are required")
	}
	cfg := deps.Config
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}

	tx := repository.NewTransactor(deps.DB)

	identityService := services.NewIdentityService(deps.DB, tx, cfg.JWTSecret, log, deps.Metrics)
	enrollmentService := services.NewEnrollmentService(deps.DB, tx, cfg.Site.DefaultCurrency, log, deps.Metrics)
	cohortService := services.NewCohortService(deps.DB, tx, deps.Hub, log, deps.Metrics)
	progressService := services.NewProgressService(deps.DB, tx)
	questionService := services.NewQuestionService(deps.DB, tx, deps.Hub)
	notificationService := services.NewNotificationService(deps.DB)
	catalogService := services.NewCatalogService(deps.DB, tx, deps.Cache, cfg.Site, log, deps.Metrics)

	authHandler := handlers.NewAuthHandler(identityService)
	staffHandler := handlers.NewStaffHandler(identityService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	sessionHandler := handlers.NewSessionHandler(cohortService)
	progressHandler := handlers.NewProgressHandler(progressService)
	questionHandler := handlers.NewQuestionHandler(questionService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, deps.Hub, cfg.JWTSecret)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if cfg.EnableMetrics && deps.Metrics != nil {
		app.Get("/metrics", deps.Metrics.Handler())
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	catalog := api.Group("/catalog")
	catalog.Get("/trainings", catalogHandler.ListTrainings)
	catalog.Get("/trainings/:slug", catalogHandler.GetTraining)
	catalog.Get("/cities", catalogHandler.ListCities)

	// Registered ahead of the /v1 group so the upgrade can authenticate with ?token=.
	api.Use("/v1/ws", notificationHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(notificationHandler.HandleWebSocket))

	protected := api.Group("/v1",
		middleware.AuthRequired(cfg.JWTSecret),
		middleware.LoadPrincipal(identityService, log, deps.Metrics),
	)

	staff := protected.Group("/staff")
	staff.Post("/students", staffHandler.CreateStudent)
	staff.Post("/students/:id/toggle-status", staffHandler.ToggleStudentStatus)
	staff.Put("/profiles/:id/status", staffHandler.SetStatus)
	staff.Put("/profiles/:id/role", staffHandler.ChangeRole)
	staff.Put("/assistants/:id/cities", staffHandler.AssignCities)
	staff.Post("/trainings", catalogHandler.CreateTraining)
	staff.Put("/trainings/:id", catalogHandler.UpdateTraining)
	staff.Put("/trainings/:id/active", catalogHandler.SetTrainingActive)

	enrollment := protected.Group("/enrollment")
	enrollment.Post("/:studentId/authorize", enrollmentHandler.Authorize)
	enrollment.Post("/:studentId/revoke", enrollmentHandler.Revoke)
	enrollment.Post("/:studentId/set", enrollmentHandler.Set)
	enrollment.Post("/:studentId/authorize-all", enrollmentHandler.AuthorizeAll)
	enrollment.Post("/:studentId/payment", enrollmentHandler.RecordPayment)
	enrollment.Get("/:studentId/balance", enrollmentHandler.GetBalance)

	sessions := protected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Delete("/students/:studentId", sessionHandler.UnassignStudent)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id/status", sessionHandler.UpdateStatus)
	sessions.Post("/:id/seances", sessionHandler.AddSeance)
	sessions.Post("/:id/students", sessionHandler.AssignStudent)
	sessions.Post("/:id/notify", sessionHandler.Notify)
	sessions.Post("/:id/live", sessionHandler.StartLive)

	live := protected.Group("/live")
	live.Post("/:id/end", sessionHandler.EndLive)
	live.Post("/:id/join", progressHandler.JoinLive)
	live.Post("/:id/heartbeat", progressHandler.Heartbeat)

	progress := protected.Group("/progress")
	progress.Post("/videos/:id", progressHandler.RecordProgress)
	progress.Get("/summary", progressHandler.Summary)

	videos := protected.Group("/videos")
	videos.Post("/:id/questions", questionHandler.Ask)
	videos.Get("/:id/questions", questionHandler.List)

	questions := protected.Group("/questions")
	questions.Post("/:id/answer", questionHandler.Answer)
	questions.Delete("/:id", questionHandler.Delete)

	notifications := protected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	return nil
}
