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
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Provider      ProviderConfig
	Transcription TranscriptionConfig
	Pipeline      PipelineConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for hosted-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// ProviderConfig configures the two language-model backends.
// The local backend is probed before use; the cloud backend is assumed
// available whenever an API key is configured.
type ProviderConfig struct {
	PreferLocal bool

	LocalBaseURL string
	LocalModel   string
	ProbeTimeout time.Duration

	CloudAPIKey string
	CloudModel  string

	RequestTimeout time.Duration
}

type TranscriptionConfig struct {
	BaseURL string
	Timeout time.Duration

	// MinTranscriptChars guards against silent/empty recordings.
	MinTranscriptChars int
}

type PipelineConfig struct {
	AuditTemperature float64
	AuditMaxTokens   int

	DefaultBatchSize int
	MaxBatchSize     int

	// ClaimTimeout is how long a call may sit in `processing` before a later
	// batch run is allowed to reclaim it (crashed-worker recovery).
	ClaimTimeout time.Duration
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
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Provider.PreferLocal = boolEnv("LLM_PREFER_LOCAL", true)
	c.Provider.LocalBaseURL = strings.TrimSpace(os.Getenv("LLM_LOCAL_URL"))
	c.Provider.LocalModel = strings.TrimSpace(os.Getenv("LLM_LOCAL_MODEL"))
	c.Provider.ProbeTimeout = mustDuration("LLM_PROBE_TIMEOUT")
	c.Provider.CloudAPIKey = os.Getenv("LLM_CLOUD_API_KEY")
	c.Provider.CloudModel = strings.TrimSpace(os.Getenv("LLM_CLOUD_MODEL"))
	c.Provider.RequestTimeout = mustDuration("LLM_REQUEST_TIMEOUT")

	c.Transcription.BaseURL = strings.TrimSpace(os.Getenv("TRANSCRIBE_URL"))
	c.Transcription.Timeout = mustDuration("TRANSCRIBE_TIMEOUT")
	c.Transcription.MinTranscriptChars = intEnv("TRANSCRIBE_MIN_CHARS", 0)

	c.Pipeline.AuditTemperature = floatEnv("AUDIT_TEMPERATURE", 0)
	c.Pipeline.AuditMaxTokens = intEnv("AUDIT_MAX_TOKENS", 0)
	c.Pipeline.DefaultBatchSize = intEnv("BATCH_SIZE", 0)
	c.Pipeline.MaxBatchSize = intEnv("BATCH_MAX_SIZE", 0)
	c.Pipeline.ClaimTimeout = mustDuration("BATCH_CLAIM_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
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
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
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
	}

	// At least one language-model backend must be reachable in principle.
	// Availability is still probed at audit time; this only rejects a config
	// where neither backend could ever be selected.
	if c.Provider.LocalBaseURL == "" && c.Provider.CloudAPIKey == "" {
		errs = append(errs, errors.New("at least one of LLM_LOCAL_URL or LLM_CLOUD_API_KEY is required"))
	}
	if c.Provider.LocalBaseURL != "" && c.Provider.LocalModel == "" {
		errs = append(errs, errors.New("LLM_LOCAL_MODEL is required when LLM_LOCAL_URL is set"))
	}
	if c.Provider.CloudAPIKey != "" && c.Provider.CloudModel == "" {
		errs = append(errs, errors.New("LLM_CLOUD_MODEL is required when LLM_CLOUD_API_KEY is set"))
	}

	if c.Transcription.BaseURL == "" {
		errs = append(errs, errors.New("TRANSCRIBE_URL is required"))
	}

	if c.Pipeline.AuditTemperature < 0 || c.Pipeline.AuditTemperature > 2 {
		errs = append(errs, fmt.Errorf("AUDIT_TEMPERATURE must be within [0, 2], got %v", c.Pipeline.AuditTemperature))
	}

	return joinErrors(errs)
}

// applyDefaults fills optional knobs after validation.
// Defaults are deliberately conservative.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 24 * time.Hour
	}
	if c.Provider.ProbeTimeout <= 0 {
		c.Provider.ProbeTimeout = 2 * time.Second
	}
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = 120 * time.Second
	}
	if c.Transcription.Timeout <= 0 {
		c.Transcription.Timeout = 90 * time.Second
	}
	if c.Transcription.MinTranscriptChars <= 0 {
		c.Transcription.MinTranscriptChars = 40
	}
	if c.Pipeline.AuditMaxTokens <= 0 {
		c.Pipeline.AuditMaxTokens = 4096
	}
	if c.Pipeline.DefaultBatchSize <= 0 {
		c.Pipeline.DefaultBatchSize = 10
	}
	if c.Pipeline.MaxBatchSize <= 0 {
		c.Pipeline.MaxBatchSize = 50
	}
	if c.Pipeline.ClaimTimeout <= 0 {
		c.Pipeline.ClaimTimeout = 10 * time.Minute
	}
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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
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

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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
