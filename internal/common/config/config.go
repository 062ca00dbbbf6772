package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	// Storage selects exactly one persistence backend at startup.
	Storage struct {
		Backend string `env:"STORAGE_BACKEND" envDefault:"file"` // file, redis
		DataDir string `env:"STORAGE_DATA_DIR" envDefault:"./data"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Discord struct {
		BotToken string  `env:"DISCORD_BOT_TOKEN,required"`
		Marker   string  `env:"GIVEAWAY_REACTION" envDefault:"🎉"`
		AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`
	}

	Sweep struct {
		GiveawayInterval time.Duration `env:"GIVEAWAY_SWEEP_INTERVAL" envDefault:"1m"`
		LicenseInterval  time.Duration `env:"LICENSE_SWEEP_INTERVAL" envDefault:"10m"`
		EntityBudget     time.Duration `env:"SWEEP_ENTITY_BUDGET" envDefault:"30s"`
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine, production sets variables directly.
		_ = err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
