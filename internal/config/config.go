package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Gateway   GatewayConfig
	Dedup     DedupConfig
	Pipeline  PipelineConfig
	OpenAI    OpenAIConfig
	AMQP      AMQPConfig
	Campaigns CampaignsConfig
}

type AppConfig struct {
	Env      string
	Port     int
	Timezone string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional unless the dedup backend is redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// OperatorAPIKey is exchanged for a token pair at /v1/auth/token.
	OperatorAPIKey string
}

type GatewayConfig struct {
	Enabled    bool
	BaseURL    string
	APIKey     string
	InstanceID string
	SendPath   string
	// BotID is the gateway's own chat id; contact updates carrying it are ignored.
	BotID      string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

type DedupConfig struct {
	Backend string // memory | redis
	TTL     time.Duration
}

type PipelineConfig struct {
	HistoryLimit     int
	ManualSessionTTL time.Duration
	CatalogPath      string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type CampaignsConfig struct {
	SweepCron    string
	CompanyName  string
	CompanyPhone string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.Timezone = strings.TrimSpace(os.Getenv("APP_TIMEZONE"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.OperatorAPIKey = os.Getenv("OPERATOR_API_KEY")

	c.Gateway.Enabled = boolEnv("GATEWAY_ENABLED")
	c.Gateway.BaseURL = strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL"))
	c.Gateway.APIKey = os.Getenv("GATEWAY_API_KEY")
	c.Gateway.InstanceID = strings.TrimSpace(os.Getenv("GATEWAY_INSTANCE_ID"))
	c.Gateway.SendPath = strings.TrimSpace(os.Getenv("GATEWAY_SEND_PATH"))
	c.Gateway.BotID = strings.TrimSpace(os.Getenv("GATEWAY_BOT_ID"))
	c.Gateway.Timeout = mustDuration("GATEWAY_TIMEOUT")
	{
		f, err := optionalFloat("GATEWAY_RATE_PER_SEC")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Gateway.RatePerSec = f
	}
	{
		n, err := optionalInt("GATEWAY_BURST")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Gateway.Burst = n
	}

	c.Dedup.Backend = strings.TrimSpace(os.Getenv("DEDUP_BACKEND"))
	c.Dedup.TTL = mustDuration("DEDUP_TTL")

	{
		n, err := optionalInt("HISTORY_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Pipeline.HistoryLimit = n
	}
	c.Pipeline.ManualSessionTTL = mustDuration("MANUAL_SESSION_TTL")
	c.Pipeline.CatalogPath = strings.TrimSpace(os.Getenv("CATALOG_PREVIEW_PATH"))

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	c.OpenAI.Timeout = mustDuration("OPENAI_TIMEOUT")

	c.AMQP.URL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.AMQP.Exchange = strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))

	c.Campaigns.SweepCron = strings.TrimSpace(os.Getenv("CAMPAIGN_SWEEP_CRON"))
	c.Campaigns.CompanyName = strings.TrimSpace(os.Getenv("COMPANY_NAME"))
	c.Campaigns.CompanyPhone = strings.TrimSpace(os.Getenv("COMPANY_PHONE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every configuration problem at once and fills env-dependent defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "America/Sao_Paulo"
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE must be a valid IANA zone, got %q", c.App.Timezone))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Dedup.Backend == "" {
		c.Dedup.Backend = "memory"
	}
	switch c.Dedup.Backend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required when DEDUP_BACKEND=redis"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("DEDUP_BACKEND must be one of memory, redis, got %q", c.Dedup.Backend))
	}
	if c.Dedup.TTL <= 0 {
		c.Dedup.TTL = 180 * time.Second
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Auth.OperatorAPIKey == "" {
			errs = append(errs, errors.New("OPERATOR_API_KEY is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Gateway.Enabled {
		if c.Gateway.BaseURL == "" {
			errs = append(errs, errors.New("GATEWAY_BASE_URL is required when GATEWAY_ENABLED=true"))
		}
		if c.Gateway.APIKey == "" {
			errs = append(errs, errors.New("GATEWAY_API_KEY is required when GATEWAY_ENABLED=true"))
		}
	}
	if c.Gateway.SendPath == "" {
		c.Gateway.SendPath = "/message/sendText"
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Gateway.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("GATEWAY_RATE_PER_SEC must be >= 0, got %v", c.Gateway.RatePerSec))
	}
	if c.Gateway.RatePerSec == 0 {
		c.Gateway.RatePerSec = 5
	}
	if c.Gateway.Burst <= 0 {
		c.Gateway.Burst = 5
	}

	if c.Pipeline.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be >= 0, got %d", c.Pipeline.HistoryLimit))
	}
	if c.Pipeline.HistoryLimit == 0 {
		c.Pipeline.HistoryLimit = 6
	}
	if c.Pipeline.ManualSessionTTL <= 0 {
		c.Pipeline.ManualSessionTTL = 15 * time.Minute
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 8 * time.Second
	}

	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "chat.events"
	}

	if c.Campaigns.SweepCron == "" {
		c.Campaigns.SweepCron = "* * * * *"
	}
	if c.Campaigns.CompanyName == "" {
		c.Campaigns.CompanyName = "3A Frios"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form golang-migrate expects.
func (c Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location returns the business timezone; Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
