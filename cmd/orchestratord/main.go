package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chronoeffector/orchestrator/agents"
	"github.com/chronoeffector/orchestrator/ai"
	"github.com/chronoeffector/orchestrator/api"
	"github.com/chronoeffector/orchestrator/api/handlers"
	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/consensus"
	"github.com/chronoeffector/orchestrator/loader"
	"github.com/chronoeffector/orchestrator/registry"
	"github.com/chronoeffector/orchestrator/scheduler"
	"github.com/chronoeffector/orchestrator/staking"
	"github.com/chronoeffector/orchestrator/utils"
)

const (
	defaultStakeThreshold  = 100
	defaultQualityExpected = 0.3
	defaultTickInterval    = time.Second
)

func envFloat(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		log.Printf("Ignoring malformed %s=%q", key, raw)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
		log.Printf("Ignoring malformed %s=%q", key, raw)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
		log.Printf("Ignoring malformed %s=%q", key, raw)
	}
	return fallback
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Event bus: external NATS if configured, otherwise an embedded server.
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		srv, url, err := communication.StartEmbeddedServer()
		if err != nil {
			log.Fatalf("Failed to start embedded NATS server: %v", err)
		}
		defer srv.Shutdown()
		natsURL = url
	}
	bus, err := communication.NewNATSBus(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect event bus: %v", err)
	}
	defer bus.Close()

	// Loader table first, then registry, then scheduler.
	llm := ai.NewClient(os.Getenv("OPENAI_API_KEY"))
	if llm == nil {
		log.Println("OPENAI_API_KEY not set; agents use deterministic fallbacks")
	}
	pluginDir := os.Getenv("PLUGIN_DIR")
	ld := loader.NewLoader(agents.DefaultTable(llm, bus), pluginDir)

	ledger := staking.NewLedger()
	threshold := envFloat("STAKE_THRESHOLD", defaultStakeThreshold)
	reg := registry.NewRegistry(ledger, threshold, bus)
	verifier := registry.NewVerifier(reg)

	panel := consensus.NewPanel([]consensus.Validator{
		consensus.NonEmptyOutput(),
		consensus.QualityScore(envFloat("QUALITY_EXPECTED", defaultQualityExpected)),
	}, envInt("CONSENSUS_QUORUM", 0))

	timeout := envDuration("EXECUTION_TIMEOUT", scheduler.DefaultTimeout)
	sched := scheduler.NewScheduler(reg, panel, bus, timeout)

	if pluginDir != "" && utils.FileExists(pluginDir) {
		stopWatch := make(chan struct{})
		defer close(stopWatch)
		go func() {
			if err := loader.WatchPluginDir(pluginDir, nil, stopWatch); err != nil {
				log.Printf("Plugin watcher stopped: %v", err)
			}
		}()
	}

	sched.Start(envDuration("TICK_INTERVAL", defaultTickInterval))
	defer sched.Stop()

	// HTTP API.
	router := gin.Default()
	api.SetupRoutes(router, &handlers.Env{
		Loader:    ld,
		Registry:  reg,
		Verifier:  verifier,
		Ledger:    ledger,
		Scheduler: sched,
		Bus:       bus,
	})

	port := envInt("API_PORT", 0)
	if port == 0 {
		port = utils.FindAvailableAPIPort()
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		log.Printf("Orchestrator API listening on port %d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down orchestrator...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced API shutdown: %v", err)
	}
}
