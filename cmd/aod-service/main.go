package main

import (
	"fmt"
	"os"
	"time"

	"github.com/arvale/aod-service/internal/auth"
	"github.com/arvale/aod-service/internal/config"
	"github.com/arvale/aod-service/internal/db"
	"github.com/arvale/aod-service/internal/excel"
	httphandler "github.com/arvale/aod-service/internal/http"
	"github.com/arvale/aod-service/internal/http/middleware"
	"github.com/arvale/aod-service/internal/logger"
	"github.com/arvale/aod-service/internal/notifier"
	"github.com/arvale/aod-service/internal/repository"
	"github.com/arvale/aod-service/internal/scheduler"
	"github.com/arvale/aod-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	agreementRepo := repository.NewAgreementRepository(database)
	installmentRepo := repository.NewInstallmentRepository(database)
	customerRepo := repository.NewCustomerRepository(database)
	agentRepo := repository.NewAgentRepository(database)
	runRepo := repository.NewRunRepository(database)

	var email, sms service.Notifier
	if cfg.Notifier.EmailGatewayURL != "" {
		email = notifier.NewGateway(cfg.Notifier.EmailGatewayURL, cfg.Notifier.APIKey, cfg.Notifier.Timeout, log)
	} else {
		email = notifier.LogOnly{Channel: "email", Log: log}
	}
	if cfg.Notifier.SMSGatewayURL != "" {
		sms = notifier.NewGateway(cfg.Notifier.SMSGatewayURL, cfg.Notifier.APIKey, cfg.Notifier.Timeout, log)
	} else {
		sms = notifier.LogOnly{Channel: "sms", Log: log}
	}

	agreementService := service.NewAgreementService(agreementRepo, installmentRepo, log)
	reminderService := service.NewReminderService(agreementRepo, installmentRepo, customerRepo, email, sms, cfg.PublicURL, log)
	distributionService := service.NewDistributionService(customerRepo, agentRepo, log)
	reportService := service.NewReportService(customerRepo, agentRepo, excel.NewGenerator(), log)

	sched, err := scheduler.New(scheduler.Config{
		Enabled:       cfg.Scheduler.Enabled,
		CheckInterval: time.Duration(cfg.Scheduler.CheckIntervalSeconds) * time.Second,
		ReminderTimes: cfg.Scheduler.ReminderTimes,
	}, reminderService, runRepo, scheduler.SystemClock(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler misconfigured")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(agreementService, distributionService, reportService, installmentRepo, sched, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting aod service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
