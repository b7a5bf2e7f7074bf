package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment. The three
// knobs of the negotiation engine (offer TTL, sweep interval, per-buyer
// active cap) live here rather than as constants.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`

	OfferTTL                time.Duration `env:"OFFER_TTL" envDefault:"48h"`
	SweepInterval           time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	MaxActiveOffersPerBuyer int           `env:"MAX_ACTIVE_OFFERS_PER_BUYER" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// JWTConfig holds token signing material, loaded lazily so the token helpers
// in pkg need no plumbing.
type JWTConfig struct {
	Secret        string        `env:"JWT_SECRET,required"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	TTL           time.Duration `env:"JWT_TTL" envDefault:"12h"`
}

var (
	jwtOnce sync.Once
	jwtCfg  JWTConfig
)

func LoadJWT() JWTConfig {
	jwtOnce.Do(func() {
		if err := env.Parse(&jwtCfg); err != nil {
			panic(fmt.Sprintf("jwt config: %v", err))
		}
		if jwtCfg.RefreshSecret == "" {
			jwtCfg.RefreshSecret = jwtCfg.Secret
		}
	})
	return jwtCfg
}
