package app

import (
	"github.com/lumenpress/editorial-core/internal/platform/envutil"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/services"
)

type Config struct {
	LogMode     string
	Environment string
	Driver      string
	SQLitePath  string

	Policy     services.PolicyConfig
	Production services.ProductionConfig

	EnableRedis  bool
	EnableBucket bool
	EnableMail   bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "development"),
		Driver:      envutil.String("DB_DRIVER", "postgres"),
		SQLitePath:  envutil.String("SQLITE_PATH", "editorial.db"),

		Policy:     services.PolicyConfigFromEnv(),
		Production: services.ProductionConfigFromEnv(),

		EnableRedis:  envutil.String("REDIS_ADDR", "") != "",
		EnableBucket: envutil.String("GCS_BUCKET_NAME", "") != "",
		EnableMail:   envutil.String("MAIL_API_KEY", "") != "",
	}
	log.Debug("Configuration loaded",
		"environment", cfg.Environment,
		"driver", cfg.Driver,
		"redis", cfg.EnableRedis,
		"bucket", cfg.EnableBucket,
		"mail", cfg.EnableMail,
	)
	return cfg
}
