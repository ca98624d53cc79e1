package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sekolahku/sims-api/api/swagger"
	"github.com/sekolahku/sims-api/internal/handler"
	"github.com/sekolahku/sims-api/internal/middleware"
	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/internal/repository"
	"github.com/sekolahku/sims-api/internal/service"
	"github.com/sekolahku/sims-api/pkg/cache"
	"github.com/sekolahku/sims-api/pkg/config"
	"github.com/sekolahku/sims-api/pkg/database"
	"github.com/sekolahku/sims-api/pkg/jobs"
	"github.com/sekolahku/sims-api/pkg/logger"
	corsmiddleware "github.com/sekolahku/sims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sekolahku/sims-api/pkg/middleware/requestid"
	"github.com/sekolahku/sims-api/pkg/storage"
)

// @title Sekolahku SIMS API
// @version 1.0.0
// @description School information management system: admissions, students, staff, attendance, fees, exams, timetable.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	docStore, err := storage.NewDocumentStore(cfg.Storage.Dir)
	if err != nil {
		sugar.Fatalw("failed to init document store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	examRepo := repository.NewExamRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	observer := service.NewLoggingTransitionObserver(logr, metricsSvc)
	txRunner := database.NewTxRunner(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sims-api",
		Audience:           []string{"sims-api"},
	})
	admissionSvc := service.NewAdmissionService(
		admissionRepo, studentRepo, userRepo, txRunner,
		nil, observer, docStore, signer, nil, logr,
	)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	staffSvc := service.NewStaffService(staffRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, cfg.Attendance, nil, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, cfg.Fees, nil, logr)
	examSvc := service.NewExamService(examRepo, studentRepo, nil, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, nil, logr)
	configSvc := service.NewConfigurationService(configRepo, cacheRepo, userRepo, cfg.Cache.DefaultTTL, logr)
	maintenanceSvc := service.NewMaintenanceService(admissionSvc, feeSvc, cfg.Admissions, metricsSvc, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc, cfg.Admissions.MaxDocumentBytes)
	studentHandler := handler.NewStudentHandler(studentSvc)
	staffHandler := handler.NewStaffHandler(staffSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	examHandler := handler.NewExamHandler(examSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	configHandler := handler.NewConfigurationHandler(configSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/register", middleware.JWT(authSvc),
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), authHandler.Register)
		auth.GET("/profile", middleware.JWT(authSvc), authHandler.Profile)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	admissions := api.Group("/admissions")
	{
		admissions.POST("", admissionHandler.Submit)
		admissions.Use(middleware.JWT(authSvc))
		admissions.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.List)
		admissions.GET("/counts", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.StatusCounts)
		admissions.GET("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.Get)
		admissions.PATCH("/:id/status",
			middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"),
			middleware.Audit(userRepo, models.AuditActionAdmissionTransition, "admission"),
			admissionHandler.UpdateStatus)
		admissions.POST("/:id/document", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.UploadDocument)
		admissions.GET("/:id/document/url", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.DocumentURL)
		admissions.GET("/:id/offer-letter", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), admissionHandler.OfferLetter)
	}
	// Signed download link carries its own authentication.
	api.GET("/documents/download", admissionHandler.DownloadDocument)

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), studentHandler.List)
		students.GET("/export", middleware.RBAC("SUPERADMIN", "ADMIN"), studentHandler.ExportCSV)
		students.GET("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF", "SELF"), studentHandler.Get)
		students.POST("", middleware.RBAC("SUPERADMIN", "ADMIN"), studentHandler.Create)
		students.PUT("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), studentHandler.Update)
		students.DELETE("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), studentHandler.Deactivate)
	}

	staff := api.Group("/staff", middleware.JWT(authSvc))
	{
		staff.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), staffHandler.List)
		staff.GET("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), staffHandler.Get)
		staff.POST("", middleware.RBAC("SUPERADMIN", "ADMIN"), staffHandler.Create)
		staff.PUT("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), staffHandler.Update)
		staff.DELETE("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), staffHandler.Deactivate)
	}

	attendance := api.Group("/attendance", middleware.JWT(authSvc))
	{
		attendance.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), attendanceHandler.List)
		attendance.POST("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), attendanceHandler.Mark)
		attendance.POST("/bulk", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), attendanceHandler.BulkMark)
		attendance.GET("/students/:id/summary",
			middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF", "SELF"), attendanceHandler.Summary)
	}

	fees := api.Group("/fees", middleware.JWT(authSvc))
	{
		fees.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), feeHandler.List)
		fees.GET("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), feeHandler.Get)
		fees.POST("", middleware.RBAC("SUPERADMIN", "ADMIN"), feeHandler.Create)
		fees.POST("/:id/payments", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), feeHandler.RecordPayment)
		fees.POST("/:id/waive", middleware.RBAC("SUPERADMIN", "ADMIN"), feeHandler.Waive)
	}

	exams := api.Group("/exams", middleware.JWT(authSvc))
	{
		exams.GET("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.List)
		exams.GET("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.Get)
		exams.POST("", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.Create)
		exams.PUT("/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.Update)
		exams.POST("/:id/results", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.EnterResult)
		exams.GET("/:id/results", middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF"), examHandler.Results)
	}
	api.GET("/students/:id/results", middleware.JWT(authSvc),
		middleware.RBAC("SUPERADMIN", "ADMIN", "STAFF", "SELF"), examHandler.StudentResults)

	timetable := api.Group("/timetable", middleware.JWT(authSvc))
	{
		timetable.GET("", timetableHandler.List)
		timetable.GET("/:id", timetableHandler.Get)
		timetable.POST("", middleware.RBAC("SUPERADMIN", "ADMIN"), timetableHandler.Create)
		timetable.PUT("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), timetableHandler.Update)
		timetable.DELETE("/:id", middleware.RBAC("SUPERADMIN", "ADMIN"), timetableHandler.Delete)
	}

	configs := api.Group("/configurations", middleware.JWT(authSvc))
	{
		configs.GET("", middleware.RBAC("SUPERADMIN", "ADMIN"), configHandler.List)
		configs.GET("/:key", middleware.RBAC("SUPERADMIN", "ADMIN"), configHandler.Get)
		configs.PUT("/:key", middleware.RBAC("SUPERADMIN", "ADMIN"), configHandler.Update)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background maintenance.
	var queue *jobs.Queue
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		queue = jobs.NewQueue("maintenance", maintenanceSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Jobs.Workers,
			BufferSize: cfg.Jobs.QueueCapacity,
			MaxRetries: 3,
			RetryDelay: 30 * time.Second,
			Logger:     logr,
		})
		queue.Start(ctx)
		scheduler = jobs.NewScheduler(queue, []jobs.ScheduledTask{
			{Type: service.JobAdmissionStaleScan, Interval: cfg.Jobs.Interval},
			{Type: service.JobFeeOverdueScan, Interval: cfg.Jobs.Interval},
		}, logr)
		scheduler.Start(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	if queue != nil {
		queue.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
	sugar.Info("server stopped")
}
