// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the matching engine.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	SkillGraphPath string // optional YAML overriding the built-in graph
	EventChannel   string // Redis pub/sub channel for lifecycle events

	MatchRadiusKm   float64
	MaxConvocations int
	MinScore        int

	SweepInterval      time.Duration
	SettlementTimeout  time.Duration // per external settlement step
	NotificationMax    int
	NotificationTTL    time.Duration
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("ENGINE_PORT")
	if port == "" {
		port = "8084"
	}

	channel := os.Getenv("EVENT_CHANNEL")
	if channel == "" {
		channel = "convocation-events"
	}

	radius := 10.0
	if s := os.Getenv("MATCH_RADIUS_KM"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("MATCH_RADIUS_KM must be a positive number, got %q", s)
		}
		radius = v
	}

	maxConv, err := positiveInt("MAX_CONVOCATIONS", 5)
	if err != nil {
		return nil, err
	}
	minScore, err := positiveInt("MIN_SCORE", 30)
	if err != nil {
		return nil, err
	}
	notifMax, err := positiveInt("NOTIFICATION_MAX", 100)
	if err != nil {
		return nil, err
	}

	sweep, err := duration("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	stepTimeout, err := duration("SETTLEMENT_STEP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	notifTTL, err := duration("NOTIFICATION_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              port,
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		SkillGraphPath:    os.Getenv("SKILL_GRAPH_PATH"),
		EventChannel:      channel,
		MatchRadiusKm:     radius,
		MaxConvocations:   maxConv,
		MinScore:          minScore,
		SweepInterval:     sweep,
		SettlementTimeout: stepTimeout,
		NotificationMax:   notifMax,
		NotificationTTL:   notifTTL,
	}, nil
}

func positiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}

func duration(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like \"30s\", got %q", name, s)
	}
	return v, nil
}
