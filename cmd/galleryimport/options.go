package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

type optsGeneral struct {
	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// logger returns a json logger, or a human friendly one when debugging.
func (o *optsGeneral) logger() *zerolog.Logger {
	var l zerolog.Logger
	if o.Debug {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.DebugLevel)
	} else {
		l = zerolog.New(os.Stderr).Level(zerolog.InfoLevel)
	}
	l = l.With().Timestamp().Logger()
	return &l
}

type optsDatabase struct {
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Postgres connection string for gallery records"`
	CacheSize   int    `long:"cache-size" env:"CACHE_SIZE" default:"1024" description:"Records cache size, 0 disables the cache"`
}

func (o *optsDatabase) databaseURL() string {
	if o.DatabaseURL == "" {
		return defaultDatabaseURL
	}
	return o.DatabaseURL
}

type optsRedis struct {
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Redis connection string for job state"`
	QueueURL string `long:"queue-url" env:"QUEUE_URL" description:"Redis connection string for step triggers"`

	TLSCaCert string `long:"redis-tls-ca-cert" env:"REDIS_TLS_CA_CERT" description:"Redis TLS CA cert"`
	TLSCert   string `long:"redis-tls-cert" env:"REDIS_TLS_CERT" description:"Redis TLS cert"`
	TLSKey    string `long:"redis-tls-key" env:"REDIS_TLS_KEY" description:"Redis TLS key"`
}

func (o *optsRedis) redisURL() string {
	if o.RedisURL == "" {
		return defaultRedisURL
	}
	return o.RedisURL
}

func (o *optsRedis) queueURL() string {
	if o.QueueURL == "" {
		return defaultQueueURL
	}
	return o.QueueURL
}

type optsStorage struct {
	MediaDir  string `long:"media-dir" env:"MEDIA_DIR" default:"./media" description:"Where downloaded images are kept"`
	UploadDir string `long:"upload-dir" env:"UPLOAD_DIR" description:"Where uploaded payloads are staged"`
	LogDir    string `long:"log-dir" env:"LOG_DIR" default:"./logs" description:"Where job logs are written"`
	PublicURL string `long:"public-url" env:"PUBLIC_URL" default:"http://localhost:8100" description:"Base URL job log links are built from"`
}

type optsEngine struct {
	BatchSize  int           `long:"batch-size" env:"BATCH_SIZE" description:"Items per import step"`
	StepBudget time.Duration `long:"step-budget" env:"STEP_BUDGET" description:"Steps slower than this shrink the batch size"`
	Threshold  int           `long:"background-threshold" env:"BACKGROUND_THRESHOLD" description:"Galleries with more images than this are cleaned up in the background"`
}

// optsServer is everything needed to build a service.
type optsServer struct {
	optsGeneral
	optsDatabase
	optsRedis
	optsStorage
	optsEngine
}

type optsClient struct {
	optsGeneral

	Addr  string `long:"server" env:"SERVER" default:"http://localhost:8100" description:"Address of the API server"`
	User  string `long:"user" env:"USER_ID" required:"true" description:"Act as this user"`
	Admin bool   `long:"admin" env:"ADMIN" description:"Act as an admin"`
}
