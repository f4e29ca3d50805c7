package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

type TwitterConfig struct {
	APIURL            string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	BearerToken       string
	MaxPages          int
	RequestsPerSecond float64
}

type ValkeyConfig struct {
	InitAddress string
	Password    string
	TLS         bool
	TimelineTTL time.Duration
}

// Enabled reports whether a valkey address was configured.
func (c ValkeyConfig) Enabled() bool {
	return c.InitAddress != ""
}

type KafkaConfig struct {
	Broker       string
	ResultsTopic string
}

func (c KafkaConfig) Enabled() bool {
	return c.Broker != ""
}

type AWSConfig struct {
	Endpoint      string
	Region        string
	DynamoDBTable string
}

func (c AWSConfig) Enabled() bool {
	return c.DynamoDBTable != ""
}

type PostgresConfig struct {
	DSN string
}

func (c PostgresConfig) Enabled() bool {
	return c.DSN != ""
}

// OpenSearchConfig selects basic auth with Username/Password, or SigV4
// request signing against a managed AWS domain when SigV4 is set.
type OpenSearchConfig struct {
	Endpoint string
	Username string
	Password string
	Index    string
	SigV4    bool
}

func (c OpenSearchConfig) Enabled() bool {
	return c.Endpoint != ""
}

type Config struct {
	Env          string
	LogLevel     slog.Level
	HTTPAddr     string
	RequireAuth  bool
	DefaultLimit int
	MaxLimit     int
	Workers      int
	Language     string
	FetchTimeout time.Duration

	Twitter    TwitterConfig
	Valkey     ValkeyConfig
	Kafka      KafkaConfig
	AWS        AWSConfig
	Postgres   PostgresConfig
	OpenSearch OpenSearchConfig
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// Load reads the configuration from the environment. Call LoadEnv first to
// pull in an env file.
func Load() (Config, error) {
	p := parser{}

	cfg := Config{
		Env:          getEnv("APP_ENV", defaultEnv),
		LogLevel:     p.getLevel("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		RequireAuth:  p.getBool("REQUIRE_AUTH", false),
		DefaultLimit: p.getInt("DEFAULT_LIMIT", 100),
		MaxLimit:     p.getInt("MAX_LIMIT", 500),
		Workers:      p.getInt("WORKERS", runtime.NumCPU()),
		Language:     getEnv("DOCUMENT_LANGUAGE", "en"),
		FetchTimeout: p.getDuration("FETCH_TIMEOUT", 30*time.Second),
		Twitter: TwitterConfig{
			APIURL:            getEnv("TWITTER_API_URL", "https://api.twitter.com"),
			TokenURL:          getEnv("TWITTER_TOKEN_URL", "https://api.twitter.com/oauth2/token"),
			ClientID:          getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret:      getEnv("TWITTER_CLIENT_SECRET", ""),
			BearerToken:       getEnv("TWITTER_BEARER_TOKEN", ""),
			MaxPages:          p.getInt("TWITTER_MAX_PAGES", 10),
			RequestsPerSecond: p.getFloat("TWITTER_REQUESTS_PER_SECOND", 1),
		},
		Valkey: ValkeyConfig{
			InitAddress: getEnv("VALKEY_INIT_ADDRESS", ""),
			Password:    getEnv("VALKEY_PASSWORD", ""),
			TLS:         p.getBool("VALKEY_TLS", false),
			TimelineTTL: p.getDuration("TIMELINE_CACHE_TTL", 15*time.Minute),
		},
		Kafka: KafkaConfig{
			Broker:       getEnv("KAFKA_BROKER", ""),
			ResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", "sentiment.results"),
		},
		AWS: AWSConfig{
			Endpoint:      getEnv("AWS_ENDPOINT", ""),
			Region:        getEnv("AWS_REGION", "us-west-1"),
			DynamoDBTable: getEnv("DYNAMODB_TABLE", ""),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		OpenSearch: OpenSearchConfig{
			Endpoint: getEnv("OPENSEARCH_ENDPOINT", ""),
			Username: getEnv("OPENSEARCH_USERNAME", "admin"),
			Password: getEnv("OPENSEARCH_PASSWORD", ""),
			Index:    getEnv("OPENSEARCH_INDEX", "sentiment-records"),
			SigV4:    p.getBool("OPENSEARCH_SIGV4", false),
		},
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DefaultLimit <= 0 {
		errs = append(errs, errors.New("DEFAULT_LIMIT must be positive"))
	}
	if c.MaxLimit < c.DefaultLimit {
		errs = append(errs, errors.New("MAX_LIMIT must be at least DEFAULT_LIMIT"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.Twitter.MaxPages <= 0 {
		errs = append(errs, errors.New("TWITTER_MAX_PAGES must be positive"))
	}
	if c.Twitter.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("TWITTER_REQUESTS_PER_SECOND must be positive"))
	}
	if c.OpenSearch.Enabled() && c.OpenSearch.Index == "" {
		errs = append(errs, errors.New("OPENSEARCH_INDEX must be set when OPENSEARCH_ENDPOINT is"))
	}
	return errors.Join(errs...)
}

func loadFile(path string) error {
	return gotenv.Load(path)
}

// parser collects conversion errors so Load can report all of them at once.
type parser struct {
	errs []error
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s %q: %w", key, value, err))
}

func (p *parser) getInt(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getFloat(key string, def float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getBool(key string, def bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) getLevel(key string, def slog.Level) slog.Level {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		p.fail(key, raw, err)
		return def
	}
	return lvl
}
