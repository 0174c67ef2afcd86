package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	relayserver "chat-relay/server"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, supervises the relay until a signal arrives and
// makes sure deferred cleanups run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	host := flag.String("host", config.RelayHost, "address the chat relay binds to, empty for all interfaces")
	port := flag.Int("port", config.RelayPort, "TCP port of the chat relay")
	flag.Parse()
	config.RelayHost, config.RelayPort = *host, *port
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Name admission
	filter, err := moderation.NewNameFilter(moderation.ParseWordList(config.BlockedNames), logger)
	if err != nil {
		return exitConfig, fmt.Errorf("blocked names error: %w", err)
	}
	validator := auth.NewNameValidator(filter)

	// 3. Presence journal (BadgerDB), only when a path is configured
	stats := observability.NewRelayStats()
	registry := runtime.NewRegistry(logger)
	var observers []contract.Observer
	var journal *repositories.PresenceRepository
	if config.JournalPath != "" {
		db, err := repositories.OpenBadger(config.JournalPath)
		if err != nil {
			return exitRuntime, fmt.Errorf("journal opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		journal = repositories.NewPresenceRepository(db, logger)
		observers = append(observers, journal)

		if logger.Enabled(ctx, slog.LevelDebug) {
			startInspector(logger, db, config.DebugPort)
		}
	}

	// 4. Relay core
	dispatcher := runtime.NewDispatcher(logger, registry, config.WriteTimeout, stats, observers...)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	relay := relayserver.New(logger, registry, dispatcher, validator, stats,
		relayserver.WithShutdownTimeout(config.ShutdownTimeout),
		relayserver.WithWriteTimeout(config.WriteTimeout),
		relayserver.WithMaxMessageSize(config.MaxMessageSize),
		relayserver.WithStateHook(func(running bool) {
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if running {
				status = healthpb.HealthCheckResponse_SERVING
			}
			healthServer.SetServingStatus("", status)
		}),
	)

	// 5. Admin service
	var presence contract.IPresenceJournal
	if journal != nil {
		presence = journal
	}
	adminService := services.NewAdminService(logger, relay, presence, stats,
		config.RelayHost, config.RelayPort, config.JournalLimit)
	secret := []byte(config.AdminSecret)
	if len(secret) == 0 {
		logger.Warn("ADMIN_SECRET is empty, the admin service accepts unauthenticated calls", "address", config.AdminAddress())
	}
	adminListener := server.NewListener(logger, config.AdminAddress(), func() *grpc.Server {
		return server.NewGRPCServer(logger, adminService, healthServer, secret)
	})

	// 6. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewRelayWorker(relay, config.RelayHost, config.RelayPort),
		adminListener,
		workers.NewReporterWorker(logger, stats, registry.Len, config.ReportInterval),
	)

	logger.Info("Starting chat relay", "port", config.RelayPort, "admin", config.AdminAddress(),
		"journal", config.JournalPath != "")
	sup.Run(ctx)

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func startInspector(logger *slog.Logger, db *badger.DB, port int) {
	endpoint := "/inspect"
	logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", port, endpoint))
	database.StartDebugServer(db, port, endpoint, PresenceMapper)
}

// PresenceMapper renders a journal entry in the Badger inspector.
func PresenceMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	msg, err := protocol.Unmarshal(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = msg.Kind.String()
	row.Detail = msg.Content
	return row
}
