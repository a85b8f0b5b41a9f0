package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Project-Caravana/telemetry-service/api"
	"github.com/Project-Caravana/telemetry-service/config"
	"github.com/Project-Caravana/telemetry-service/internal/broadcast"
	"github.com/Project-Caravana/telemetry-service/internal/cache"
	"github.com/Project-Caravana/telemetry-service/internal/db"
	"github.com/Project-Caravana/telemetry-service/internal/messagebus"
	"github.com/Project-Caravana/telemetry-service/internal/repository"
	"github.com/Project-Caravana/telemetry-service/internal/service"
	"github.com/Project-Caravana/telemetry-service/internal/tracing"
)

var (
	// Serve command flags
	disableNewRelic bool
	serverPort      int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telemetry API server",
	Long: `Starts the telemetry server that ingests vehicle readings, serves
history and alert queries, and streams live snapshot updates over
websockets.

The server respects the configuration in config.yaml or specified via the
--config flag. It will gracefully shut down on SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&disableNewRelic, "disable-newrelic", false, "Disable New Relic monitoring")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port (overrides config file)")
}

// startServer initializes and starts the API server
func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}
	if disableNewRelic {
		cfg.NewRelic.Enabled = false
	}

	// Initialize New Relic
	nrApp, err := tracing.InitNewRelic(cfg.NewRelic)
	if err != nil {
		log.Warnf("Failed to initialize New Relic: %v", err)
	}

	// Connect to database and run migrations
	gormDB, err := db.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Info("Running database migrations...")
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis snapshot cache
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize the Azure Service Bus alert publisher
	busClient, err := messagebus.NewClient(&cfg.ServiceBus)
	if err != nil {
		log.Fatalf("Failed to connect to Azure Service Bus: %v", err)
	}

	// Start the broadcast hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := broadcast.NewHub(cfg.Broadcast, log)
	go hub.Run(hubCtx)

	// Repositories and services
	vehicleRepo := repository.NewVehicleRepository(gormDB)
	telemetryRepo := repository.NewTelemetryRepository(gormDB)
	alertRepo := repository.NewAlertRepository(gormDB)

	ingestSvc := service.NewIngestService(
		vehicleRepo, telemetryRepo, redisClient, hub, busClient, cfg.ServiceBus.AlertQueue, log,
	)
	querySvc := service.NewQueryService(vehicleRepo, telemetryRepo, alertRepo, redisClient, log)

	// Start the server
	server := api.NewServer(cfg, log, nrApp, ingestSvc, querySvc, hub)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infof("Received signal %s, shutting down gracefully...", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}
	stopHub()

	busCtx, busCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer busCancel()
	if err := busClient.Close(busCtx); err != nil {
		log.Warnf("Message bus shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}
