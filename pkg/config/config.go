package config

import (
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

const (
	StoreBackendFirestore = "firestore"
	StoreBackendMemory    = "memory"
)

type Config struct {
	ServerPort         string `env:"SERVER_PORT" envDefault:"8080"`
	FirebaseProject    string `env:"FIREBASE_PROJECT_ID"`
	ServiceAccountJSON string `env:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	ServiceAccountPath string `env:"FIREBASE_SERVICE_ACCOUNT_PATH" envDefault:"./firebase-adminsdk.json"`
	Environment        string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`

	// StoreBackend selects where conversations live. "memory" runs the
	// gateway without Firestore, for local development only.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"firestore"`

	ChatScrollDelay time.Duration `env:"CHAT_SCROLL_DELAY" envDefault:"100ms"`
	ChatEventBuffer int           `env:"CHAT_EVENT_BUFFER" envDefault:"64"`
}

func Load() (*Config, error) {
	// A missing .env file is fine outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
