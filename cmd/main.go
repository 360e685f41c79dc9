package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/blockchain"
	"github.com/Soulboard/soulboard-web-sub001/internal/config"
	"github.com/Soulboard/soulboard-web-sub001/internal/handler"
	"github.com/Soulboard/soulboard-web-sub001/internal/models"
	"github.com/Soulboard/soulboard-web-sub001/internal/payments"
	"github.com/Soulboard/soulboard-web-sub001/internal/repository"
	"github.com/Soulboard/soulboard-web-sub001/internal/scheduler"
	"github.com/Soulboard/soulboard-web-sub001/internal/service"
	"github.com/Soulboard/soulboard-web-sub001/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database: ", err)
	}
	defer closeDatabase(db)

	chainClient, err := blockchain.NewClient(&cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to connect to chain RPC: ", err)
	}
	defer chainClient.Close()

	registry, err := blockchain.NewRegistry(chainClient, cfg.Chain.RegistryAddress)
	if err != nil {
		logger.Fatal("Failed to create registry client: ", err)
	}

	oracle, err := blockchain.NewOracle(chainClient, cfg.Chain.OracleAddress)
	if err != nil {
		logger.Fatal("Failed to create oracle client: ", err)
	}

	identityRepo := repository.NewIdentityRepository(db)
	runRepo := repository.NewSettlementRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	ledger := payments.NewClient(&cfg.Payments)

	aggregator := service.NewMetricsAggregator(oracle, cfg.Settlement.MaxChunkSeconds)
	collector := service.NewMetricsCollector(registry, aggregator, cfg.Settlement.DeviceWorkers)
	settlementSvc := service.NewSettlementService(
		registry, collector, identityRepo, runRepo, payoutRepo, ledger,
		&cfg.Settlement, cfg.Payments.TokenAddress,
	)

	settlementScheduler := scheduler.NewSettlementScheduler(settlementSvc, cfg.Settlement.Cron)
	if err := settlementScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: ", err)
	}
	defer settlementScheduler.Stop()

	router := setupHTTPRouter(identityRepo, runRepo, payoutRepo, settlementScheduler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port ", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error: ", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.AutoMigrate(
		&models.Account{},
		&models.SettlementRun{},
		&models.DevicePayout{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance: ", err)
		return
	}
	sqlDB.Close()
}

func setupHTTPRouter(identityRepo *repository.IdentityRepository, runRepo *repository.SettlementRepository, payoutRepo *repository.PayoutRepository, sched *scheduler.SettlementScheduler) http.Handler {
	router := http.NewServeMux()

	providerHandler := handler.NewProviderHandler(identityRepo)
	settlementHandler := handler.NewSettlementHandler(runRepo, payoutRepo, sched)

	router.HandleFunc("/api/providers/", providerHandler.GetEarnings)
	router.HandleFunc("/api/settlements", settlementHandler.ListRuns)
	router.HandleFunc("/api/payouts", settlementHandler.ListPayouts)
	router.HandleFunc("/api/settlement/run", settlementHandler.TriggerRun)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
