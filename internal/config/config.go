package config

import (
	"log"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv            string `env:"APP_ENV" envDefault:"dev"`
	APIAddr           string `env:"API_ADDR" envDefault:":8080"`
	PostgresDSN       string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr         string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"4"`
	DequeueBlockSec   int    `env:"DEQUEUE_BLOCK_SEC" envDefault:"5"`
	ArtifactDir       string `env:"ARTIFACT_DIR" envDefault:"./artifacts"`
	ArtifactBaseURL   string `env:"ARTIFACT_BASE_URL" envDefault:"http://localhost:8080/artifacts"`
	SMTPHost          string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort          string `env:"SMTP_PORT" envDefault:"25"`
	SMTPUsername      string `env:"SMTP_USERNAME"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`
	SMTPFrom          string `env:"SMTP_FROM" envDefault:"noreply@hrq.local"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
