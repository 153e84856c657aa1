package main

import "time"

type Config struct {
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT,default=6060"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`

	TokenSecret   string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	// Comma-separated browser origins allowed on the REST endpoints and
	// the upgrade. Empty mounts no CORS headers, so only non-browser
	// clients get through.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	// Comma-separated dictionary for the activity censor.
	BlockedWords              []string `env:"BLOCKED_WORDS,required=true"`
	ModerationCharReplacement rune     `env:"MODERATION_CHARACTER_REPLACEMENT,required=true"`

	ConnectionBufferSize   int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	NotificationBufferSize int           `env:"NOTIFICATION_BUFFER_SIZE,required=true"`
	TelemetryInterval      time.Duration `env:"TELEMETRY_INTERVAL,required=true"`
}
