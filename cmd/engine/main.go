package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"staking-reward-engine/internal/config"
	"staking-reward-engine/internal/handler"
	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/internal/scheduler"
	"staking-reward-engine/internal/service"
	"staking-reward-engine/pkg/logger"
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
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if cfg.Database.AutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to migrate database:", err)
		}
	}

	store := repository.NewStore(db)

	stakingSvc := service.NewStakingService(store, nil)
	expirySvc := service.NewExpiryService(store, cfg.Engine.SettlementBatchSize)
	settlementSvc := service.NewSettlementService(store, cfg.Engine.SettlementBatchSize)
	accrualSvc := service.NewAccrualService(store, expirySvc, settlementSvc, nil)
	bonusSvc := service.NewBonusService(store, cfg.Engine.MaxTreeDepth, nil)
	reconcileSvc := service.NewReconcileService(store)

	accrualScheduler := scheduler.NewAccrualScheduler(accrualSvc, cfg.Engine.AccrualCron, cfg.Engine.Timeout())
	if err := accrualScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer accrualScheduler.Stop()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := handler.NewRouter(handler.Handlers{
		Accrual:     handler.NewAccrualHandler(accrualSvc, reconcileSvc),
		Bonus:       handler.NewBonusHandler(bonusSvc),
		Staking:     handler.NewStakingHandler(stakingSvc),
		MetricsPath: metricsPath,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port ", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// 单连接写入，避免 database is locked
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}
