package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/config"
	appHTTP "github.com/kerjalabs/attendance-backend-go/internal/handler/http"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/cron"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/jwt"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/keylock"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/sse"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/storage"
	"github.com/kerjalabs/attendance-backend-go/internal/repository/postgresql"
	approvalService "github.com/kerjalabs/attendance-backend-go/internal/service/approval"
	attendanceService "github.com/kerjalabs/attendance-backend-go/internal/service/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/service/file"
	notificationService "github.com/kerjalabs/attendance-backend-go/internal/service/notification"
	presenceService "github.com/kerjalabs/attendance-backend-go/internal/service/presence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	userRepo := postgresql.NewUserRepository(db)
	workplaceRepo := postgresql.NewWorkplaceRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	approvalRepo := postgresql.NewApprovalRepository(db)
	notificationRepo := postgresql.NewNotificationRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatal("Failed to initialize local storage:", err)
	}
	fileService := file.NewFileService(fileStorage)

	hub := sse.NewHub()
	notifService := notificationService.NewNotificationService(notificationRepo, hub, notificationService.Config{})
	presenceSvc := presenceService.NewPresenceService(attendanceRepo, userRepo, workplaceRepo, hub)
	approvalSvc := approvalService.NewApprovalService(
		cfg.Attendance,
		approvalRepo,
		attendanceRepo,
		userRepo,
		notifService,
	)
	attendanceSvc := attendanceService.NewAttendanceService(
		db,
		cfg.Attendance,
		attendanceRepo,
		workplaceRepo,
		userRepo,
		fileService,
		approvalSvc,
		presenceSvc,
		notifService,
		keylock.NewKeyed(),
	)

	// The live view can rebuild itself from events, so a failed warm-up is
	// not fatal.
	if err := presenceSvc.Warm(ctx); err != nil {
		slog.Warn("failed to warm presence view", "error", err)
	}

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(attendanceSvc, approvalSvc).RegisterJobs(scheduler)
	scheduler.Start()

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc)
	approvalHandler := appHTTP.NewApprovalHandler(approvalSvc)
	presenceHandler := appHTTP.NewPresenceHandler(presenceSvc, JWTService)
	notificationHandler := appHTTP.NewNotificationHandler(notifService, JWTService)

	router := appHTTP.NewRouter(
		cfg,
		JWTService,
		attendanceHandler,
		approvalHandler,
		presenceHandler,
		notificationHandler,
	)

	// Request contexts hang off baseCtx so cancelling it ends the open SSE
	// streams; without that, Shutdown would wait out its full timeout on them.
	baseCtx, closeStreams := context.WithCancel(ctx)
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.App.Port),
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		fmt.Printf("Server running at http://localhost%s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error:", err)
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	<-sigCtx.Done()

	slog.Info("shutting down")
	closeStreams()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	// Sweeps can still queue notifications, so the scheduler stops first and
	// the notification workers drain last.
	scheduler.Stop()
	presenceSvc.Stop()
	notifService.Stop()
}
