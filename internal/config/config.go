// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all race and transport settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsConfig holds the fixed-step simulation settings shared by the
// Race Engine and Orchestrator.
type PhysicsConfig struct {
	PhysicsHz       int     // Engine tick rate
	BroadcastHz     int     // Snapshot emission rate; must divide PhysicsHz
	TrackLength     float64 // Course distance
	ResumeThreshold float64 // Fraction of max_energy at which resting ends
	MaxTicks        int64   // Safety cap per race
}

// DefaultPhysics returns the default physics configuration.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		PhysicsHz:       60,
		BroadcastHz:     30,
		TrackLength:     1500,
		ResumeThreshold: 0.3,
		MaxTicks:        18000,
	}
}

// =============================================================================
// TRANSPORT CONFIGURATION
// =============================================================================

// TransportConfig holds the Connection Bus / client interpolator settings.
type TransportConfig struct {
	RenderDelayMs       int // Client interpolation lag
	SnapshotBufferSize  int // Client buffer bound (entries)
	PerSessionQueueSize int // Server outbound per-client bound
	WriteTimeoutMs      int // Session health threshold
	MaxCatchupTicks     int // Orchestrator catch-up cap
}

// DefaultTransport returns the default transport configuration.
func DefaultTransport() TransportConfig {
	return TransportConfig{
		RenderDelayMs:       100,
		SnapshotBufferSize:  32,
		PerSessionQueueSize: 4,
		WriteTimeoutMs:      2000,
		MaxCatchupTicks:     10,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr           string // Listen address, e.g. ":8080"
	DebugAddr      string // Internal metrics/pprof listener, localhost only
	EventLogPath   string // Path for the bounded diagnostic event log
	AllowedOrigins []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		DebugAddr:    "127.0.0.1:6060",
		EventLogPath: "race-events.jsonl",
		AllowedOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Physics   PhysicsConfig
	Transport TransportConfig
	Server    ServerConfig
}

// Load reads the enumerated option table via viper, applying defaults and
// then environment-variable overrides (e.g. PHYSICS_HZ, BROADCAST_HZ,
// RENDER_DELAY_MS, TRACK_LENGTH). Unlike the reinforcement-learning server
// this pattern is adapted from, there is no config file to watch - races
// are short lived and reread configuration only at process start.
func Load() AppConfig {
	vp := viper.New()
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	physics := DefaultPhysics()
	vp.SetDefault("physics_hz", physics.PhysicsHz)
	vp.SetDefault("broadcast_hz", physics.BroadcastHz)
	vp.SetDefault("track_length", physics.TrackLength)
	vp.SetDefault("resume_threshold", physics.ResumeThreshold)
	vp.SetDefault("max_ticks", physics.MaxTicks)

	transport := DefaultTransport()
	vp.SetDefault("render_delay_ms", transport.RenderDelayMs)
	vp.SetDefault("snapshot_buffer_size", transport.SnapshotBufferSize)
	vp.SetDefault("per_session_queue_size", transport.PerSessionQueueSize)
	vp.SetDefault("write_timeout_ms", transport.WriteTimeoutMs)
	vp.SetDefault("max_catchup_ticks", transport.MaxCatchupTicks)

	server := DefaultServer()
	vp.SetDefault("addr", server.Addr)
	vp.SetDefault("debug_addr", server.DebugAddr)
	vp.SetDefault("event_log_path", server.EventLogPath)

	return AppConfig{
		Physics: PhysicsConfig{
			PhysicsHz:       vp.GetInt("physics_hz"),
			BroadcastHz:     vp.GetInt("broadcast_hz"),
			TrackLength:     vp.GetFloat64("track_length"),
			ResumeThreshold: vp.GetFloat64("resume_threshold"),
			MaxTicks:        vp.GetInt64("max_ticks"),
		},
		Transport: TransportConfig{
			RenderDelayMs:       vp.GetInt("render_delay_ms"),
			SnapshotBufferSize:  vp.GetInt("snapshot_buffer_size"),
			PerSessionQueueSize: vp.GetInt("per_session_queue_size"),
			WriteTimeoutMs:      vp.GetInt("write_timeout_ms"),
			MaxCatchupTicks:     vp.GetInt("max_catchup_ticks"),
		},
		Server: ServerConfig{
			Addr:           vp.GetString("addr"),
			DebugAddr:      vp.GetString("debug_addr"),
			EventLogPath:   vp.GetString("event_log_path"),
			AllowedOrigins: server.AllowedOrigins,
		},
	}
}
