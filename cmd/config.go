package main

import "time"

type Config struct {
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=8080"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	JWTSecret      string        `env:"JWT_SECRET,required=true"`

	ConnectionBufferSize int     `env:"CONNECTION_BUFFER_SIZE,default=256"`
	FrameRateLimit       float64 `env:"FRAME_RATE_LIMIT,default=20"`
	FrameBurst           int     `env:"FRAME_BURST,default=40"`

	NotifyBufferSize int           `env:"NOTIFY_BUFFER_SIZE,default=1024"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	PushEndpoint string        `env:"PUSH_ENDPOINT,required=true"`
	PushAPIKey   string        `env:"PUSH_API_KEY"`
	PushTimeout  time.Duration `env:"PUSH_TIMEOUT,default=10s"`

	PageSize  int `env:"PAGE_SIZE,default=50"`
	DebugPort int `env:"DEBUG_PORT"`
}
