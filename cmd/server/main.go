package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"turtlerace/internal/api"
	"turtlerace/internal/bus"
	"turtlerace/internal/config"
	"turtlerace/internal/eventlog"
	"turtlerace/internal/leaderboard"
	"turtlerace/internal/orchestrator"
	"turtlerace/internal/resultsink"
	"turtlerace/internal/roster"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" TURTLE RACE - GO ENGINE")
	log.Println("================================")

	appCfg := config.Load()

	eventLogPath := getEnvWithDefault("EVENT_LOG_PATH", appCfg.Server.EventLogPath)
	evLog, err := eventlog.New(eventLogPath)
	if err != nil {
		log.Fatalf("failed to open event log at %s: %v", eventLogPath, err)
	}
	defer evLog.Close()
	reporter := api.MetricsReporter{Log: evLog}

	var roscfg orchestrator.RosterProvider
	if rosterSeedStr := os.Getenv("ROSTER_SEED"); rosterSeedStr != "" {
		seed, _ := strconv.ParseInt(rosterSeedStr, 10, 64)
		roscfg = roster.Random{Count: getEnvInt("ROSTER_SIZE", 6), Seed: seed}
	} else {
		roscfg = roster.Random{Count: getEnvInt("ROSTER_SIZE", 6), Seed: time.Now().UnixNano()}
	}

	var sink orchestrator.ResultSink
	resultPath := os.Getenv("RESULT_LOG_PATH")
	if resultPath != "" {
		sink = resultsink.NewJSONL(resultPath)
		log.Printf("recording race results to %s", resultPath)
	} else {
		sink = resultsink.Logging{}
	}

	raceBus := bus.New(bus.Config{
		PhysicsHz:           appCfg.Physics.PhysicsHz,
		BroadcastHz:         appCfg.Physics.BroadcastHz,
		PerSessionQueueSize: appCfg.Transport.PerSessionQueueSize,
		WriteTimeoutMs:      appCfg.Transport.WriteTimeoutMs,
		AllowedOrigins:      appCfg.Server.AllowedOrigins,
	})

	standings := leaderboard.New(time.Now().UnixNano())
	trackedBus := leaderboard.TrackingBroadcaster{Standings: standings, Next: raceBus}

	orch := orchestrator.New(appCfg.Physics, appCfg.Transport, roscfg, sink, trackedBus, reporter)

	handler := api.OrchestratorHandler{Orch: orch}

	router := api.NewRouter(api.RouterConfig{
		Bus:             raceBus,
		Handler:         handler,
		PerMessageRate:  rate.Limit(getEnvInt("PER_SESSION_MSG_RATE", 20)),
		PerMessageBurst: getEnvInt("PER_SESSION_MSG_BURST", 40),
		CORSOrigins:     appCfg.Server.AllowedOrigins,
		Orchestrator:    orch,
		Standings:       standings,
	})

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.ListenAddr = appCfg.Server.DebugAddr
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server failed to start: %v", err)
		}
	} else {
		log.Println("debug server disabled via DISABLE_DEBUG_SERVER")
	}

	srv := api.NewServer(router, orch, raceBus, appCfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				api.UpdateSessionCount(raceBus.Count())
				api.UpdateRaceState(orch.State().String())
			}
		}
	}()

	log.Printf("race server ready on %s (ws: /ws/race, health: /healthz)", appCfg.Server.Addr)
	log.Println("press ctrl+c to stop")

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("shutdown complete")
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
