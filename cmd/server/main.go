package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/uniregistry/course_registration/internal/config"
	"github.com/uniregistry/course_registration/internal/es"
	"github.com/uniregistry/course_registration/internal/events"
	"github.com/uniregistry/course_registration/internal/handlers"
	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/logging"
	"github.com/uniregistry/course_registration/internal/mail"
	"github.com/uniregistry/course_registration/internal/middleware/auth"
	loggingmw "github.com/uniregistry/course_registration/internal/middleware/logging"
	"github.com/uniregistry/course_registration/internal/tokens"
	httpserver "github.com/uniregistry/course_registration/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	config.MustNonEmpty(configuration.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(configuration.RESET_SECRET, "RESET_SECRET")

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	tokenService := tokens.New(
		[]byte(configuration.JWT_SECRET),
		[]byte(configuration.RESET_SECRET),
		time.Duration(configuration.RESET_TOKEN_EXPIRE_MINUTES)*time.Minute,
	)

	prod := events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	mailer := mail.NewSMTPMailer(configuration)

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init failed: %v", err)
	}

	guard := &auth.Guard{DB: db, Tokens: tokenService}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.Handler(logger)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:    db,
		Guard: guard,
		AuthHandler: &handlers.AuthHandler{
			DB:             db,
			Tokens:         tokenService,
			Mailer:         mailer,
			Producer:       prod,
			FrontendDomain: configuration.FRONTEND_DOMAIN,
			ResetPath:      configuration.FORGOT_PASSWORD_URL,
		},
		CourseHandler:     &handlers.CourseHandler{DB: db, Producer: prod, ES: esClient, Index: "course"},
		StudentHandler:    &handlers.StudentHandler{DB: db, Guard: guard, Producer: prod},
		InstructorHandler: &handlers.InstructorHandler{DB: db, Guard: guard, Producer: prod},
		SearchHandler:     &handlers.SearchHandler{ES: esClient, Index: "course"},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	} else {
		logger.Error("db handle error", "error", err)
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
