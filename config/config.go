package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort       string
	CORSAllowOrigins string
	PublicBaseURL    string

	StoreDriver string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string

	QueueDriver   string
	RedisHost     string
	RedisPort     int
	RedisQueueKey string

	PollInterval      time.Duration
	MaxConcurrent     int
	PlacementTimeout  time.Duration
	MaxCallDuration   time.Duration
	CallsPerSecond    float64
	RecoveryPageSize  int
	ReconcileSchedule string

	CallProvider     string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioBaseURL    string
	CallerNumber     string

	StorageType      string
	StoragePath      string
	StoragePublicURL string
	InferenceURL     string

	PushEnabled bool
	PushURL     string

	LogLevel    string
	LogFormat   string
	XRayEnabled bool
}

// Load reads envFile when it exists, then the process environment
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "load %s", envFile)
	}

	p := &parser{}
	cfg := Config{
		ServerPort:       getenv("SERVER_PORT", "8080"),
		CORSAllowOrigins: getenv("CORS_ALLOW_ORIGINS", "*"),

		StoreDriver: getenv("STORE_DRIVER", "postgres"),
		DBHost:      getenv("DB_HOST", "localhost"),
		DBPort:      p.getInt("DB_PORT", 5432),
		DBUser:      getenv("DB_USER", "remi"),
		DBPassword:  getenv("DB_PASSWORD", "remi"),
		DBName:      getenv("DB_NAME", "remi"),

		QueueDriver:   getenv("QUEUE_DRIVER", "redis"),
		RedisHost:     getenv("REDIS_HOST", "localhost"),
		RedisPort:     p.getInt("REDIS_PORT", 6379),
		RedisQueueKey: getenv("REDIS_QUEUE_KEY", "reminder_tasks"),

		PollInterval:      p.getDuration("POLL_INTERVAL", 30*time.Second),
		MaxConcurrent:     p.getInt("MAX_CONCURRENT_DISPATCHES", 10),
		PlacementTimeout:  p.getDuration("PLACEMENT_TIMEOUT", 45*time.Second),
		MaxCallDuration:   p.getDuration("MAX_CALL_DURATION", 10*time.Minute),
		CallsPerSecond:    p.getFloat("CALLS_PER_SECOND", 1),
		RecoveryPageSize:  p.getInt("RECOVERY_PAGE_SIZE", 200),
		ReconcileSchedule: getenv("RECONCILE_SCHEDULE", "@every 15m"),

		CallProvider:     getenv("CALL_PROVIDER", "log"),
		TwilioAccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
		TwilioBaseURL:    getenv("TWILIO_BASE_URL", ""),
		CallerNumber:     getenv("CALLER_NUMBER", ""),

		StorageType:  getenv("STORAGE_TYPE", "local"),
		StoragePath:  getenv("STORAGE_PATH", "/data/audio"),
		InferenceURL: getenv("INFERENCE_URL", ""),

		PushEnabled: p.getBool("PUSH_ENABLED", false),
		PushURL:     getenv("PUSH_URL", ""),

		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
		XRayEnabled: p.getBool("XRAY_ENABLED", false),
	}
	cfg.PublicBaseURL = strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.StoragePublicURL = getenv("STORAGE_PUBLIC_URL", "")
	if cfg.StoragePublicURL == "" && cfg.StorageType == "local" {
		cfg.StoragePublicURL = cfg.PublicBaseURL + "/audio"
	}

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return errors.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.QueueDriver {
	case "redis", "memory":
	default:
		return errors.Errorf("unknown QUEUE_DRIVER %q", c.QueueDriver)
	}
	if c.CallProvider == "twilio" {
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
			return errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for the twilio provider")
		}
		if c.CallerNumber == "" {
			return errors.New("CALLER_NUMBER is required for the twilio provider")
		}
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("MAX_CONCURRENT_DISPATCHES must be positive")
	}
	return nil
}

// StatusCallbackURL is where the call provider reports call progress
func (c Config) StatusCallbackURL() string {
	return c.PublicBaseURL + "/calls/status"
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func NewLogger(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "LOG_LEVEL")
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// parser keeps the first conversion error
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = errors.Wrapf(err, "invalid %s", key)
	}
}

func (p *parser) getInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) getFloat(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) getBool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}
