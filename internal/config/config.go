package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Configuration This struct holds config envs and values
// which are used in the lead gateway. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"lead_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	LeadsDir           string `env:"LEADS_DIR" default:"./leads"`
	OffersPath         string `env:"OFFERS_PATH" default:"./data/ofertas.json"`
	ScoringPath        string `env:"SCORING_PATH"`
	ReportArchivePath  string `env:"REPORT_ARCHIVE_PATH" default:"./data/report_snapshots.db"`
	DefaultAssignedRep string `env:"DEFAULT_ASSIGNED_REP" default:"Felipe Fortes"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	AutomationInterval    time.Duration `env:"AUTOMATION_INTERVAL"`
	AutomationRetryDelay  time.Duration `env:"AUTOMATION_RETRY_DELAY"`
	AutomationStopTimeout time.Duration `env:"AUTOMATION_STOP_TIMEOUT"`
	DispatchTimeout       time.Duration `env:"DISPATCH_TIMEOUT"`
	GreetingTTL           time.Duration `env:"GREETING_TTL"`

	ProviderUrl  string `env:"PROVIDER_URL"`
	ProviderFrom string `env:"PROVIDER_FROM"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
