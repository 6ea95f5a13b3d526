package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Supported provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config holds all configuration for the application
type Config struct {
	// Feed settings
	FeedURL       string
	ImportEnabled bool
	CronEnabled   bool
	CronSchedule  string
	MinTraffic    int
	MaxTrends     int
	TLDDenyList   string

	// AI settings
	AIProvider     string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIPrompt   string
	OpenAIBaseURL  string
	ClaudeAPIKey   string
	ClaudeModel    string
	ClaudePrompt   string
	ClaudeBaseURL  string
	AITimeout      time.Duration
	AIMaxTokens    int
	AITemperature  float64
	MaxSourceChars int

	// Article settings
	ContentType     string
	BodyFormat      string
	ImageField      string
	TagsField       string
	TagVocabulary   string
	PublishArticles bool
	DomainID        string
	MaxImages       int

	// Storage settings
	DBDriver      string
	DBDSN         string
	QueueBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisQueueKey string
	BlobBackend   string
	BlobDir       string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Prefix      string

	// Processing settings
	WorkerCount       int
	ScrapeConcurrency int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	LeaseDuration     time.Duration
	RetryDelay        time.Duration
	MaxAttempts       int
	PollInterval      time.Duration

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Log settings
	LogLevel zerolog.Level
}

// ProviderSettings is the credential, model and prompt of the selected AI provider.
type ProviderSettings struct {
	Name    string
	APIKey  string
	Model   string
	Prompt  string
	BaseURL string
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		FeedURL:           DefaultFeedURL,
		ImportEnabled:     true,
		CronEnabled:       true,
		CronSchedule:      DefaultCronSchedule,
		MinTraffic:        DefaultMinTraffic,
		MaxTrends:         DefaultMaxTrends,
		AIProvider:        DefaultAIProvider,
		OpenAIModel:       DefaultOpenAIModel,
		OpenAIPrompt:      DefaultPromptTemplate,
		ClaudeModel:       DefaultClaudeModel,
		ClaudePrompt:      DefaultPromptTemplate,
		AITimeout:         DefaultAITimeout,
		AIMaxTokens:       DefaultAIMaxTokens,
		AITemperature:     DefaultAITemperature,
		MaxSourceChars:    DefaultMaxSourceChars,
		ContentType:       DefaultContentType,
		BodyFormat:        DefaultBodyFormat,
		ImageField:        DefaultImageField,
		TagsField:         DefaultTagsField,
		TagVocabulary:     DefaultTagVocabulary,
		MaxImages:         DefaultMaxImages,
		DBDriver:          DefaultDBDriver,
		DBDSN:             DefaultDBDSN,
		QueueBackend:      DefaultQueueBackend,
		RedisAddr:         DefaultRedisAddr,
		RedisQueueKey:     DefaultRedisQueueKey,
		BlobBackend:       DefaultBlobBackend,
		BlobDir:           DefaultBlobDir,
		S3Region:          DefaultS3Region,
		WorkerCount:       DefaultWorkerCount,
		ScrapeConcurrency: DefaultScrapeConcurrency,
		RequestsPerSecond: DefaultRequestsPerSecond,
		HTTPTimeout:       DefaultHTTPTimeout,
		LeaseDuration:     DefaultLeaseDuration,
		RetryDelay:        DefaultRetryDelay,
		MaxAttempts:       DefaultMaxAttempts,
		PollInterval:      DefaultPollInterval,
		ServerHost:        DefaultServerHost,
		ServerPort:        DefaultServerPort,
		LogLevel:          logLevel,
	}
}

// Load reads an optional .env file and returns the defaults overridden by
// TRENDS_* environment variables.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides every field that has a matching environment variable.
func (c *Config) ApplyEnv() {
	c.FeedURL = GetEnvString("FEED_URL", c.FeedURL)
	c.ImportEnabled = GetEnvBool("IMPORT_ENABLED", c.ImportEnabled)
	c.CronEnabled = GetEnvBool("CRON_ENABLED", c.CronEnabled)
	c.CronSchedule = GetEnvString("CRON_SCHEDULE", c.CronSchedule)
	c.MinTraffic = GetEnvInt("MIN_TRAFFIC", c.MinTraffic)
	c.MaxTrends = GetEnvInt("MAX_TRENDS", c.MaxTrends)
	c.TLDDenyList = GetEnvString("TLD_DENYLIST", c.TLDDenyList)

	c.AIProvider = GetEnvString("AI_PROVIDER", c.AIProvider)
	c.OpenAIAPIKey = GetEnvString("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = GetEnvString("OPENAI_MODEL", c.OpenAIModel)
	c.OpenAIPrompt = GetEnvString("OPENAI_PROMPT", c.OpenAIPrompt)
	c.OpenAIBaseURL = GetEnvString("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ClaudeAPIKey = GetEnvString("CLAUDE_API_KEY", c.ClaudeAPIKey)
	c.ClaudeModel = GetEnvString("CLAUDE_MODEL", c.ClaudeModel)
	c.ClaudePrompt = GetEnvString("CLAUDE_PROMPT", c.ClaudePrompt)
	c.ClaudeBaseURL = GetEnvString("CLAUDE_BASE_URL", c.ClaudeBaseURL)
	c.AITimeout = GetEnvDuration("AI_TIMEOUT", c.AITimeout)
	c.AIMaxTokens = GetEnvInt("AI_MAX_TOKENS", c.AIMaxTokens)
	c.AITemperature = GetEnvFloat("AI_TEMPERATURE", c.AITemperature)
	c.MaxSourceChars = GetEnvInt("MAX_SOURCE_CHARS", c.MaxSourceChars)

	c.ContentType = GetEnvString("CONTENT_TYPE", c.ContentType)
	c.BodyFormat = GetEnvString("BODY_FORMAT", c.BodyFormat)
	c.ImageField = GetEnvString("IMAGE_FIELD", c.ImageField)
	c.TagsField = GetEnvString("TAGS_FIELD", c.TagsField)
	c.TagVocabulary = GetEnvString("TAG_VOCABULARY", c.TagVocabulary)
	c.PublishArticles = GetEnvBool("PUBLISH", c.PublishArticles)
	c.DomainID = GetEnvString("DOMAIN_ID", c.DomainID)
	c.MaxImages = GetEnvInt("MAX_IMAGES", c.MaxImages)

	c.DBDriver = GetEnvString("DB_DRIVER", c.DBDriver)
	c.DBDSN = GetEnvString("DB_DSN", c.DBDSN)
	c.QueueBackend = GetEnvString("QUEUE", c.QueueBackend)
	c.RedisAddr = GetEnvString("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = GetEnvString("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = GetEnvInt("REDIS_DB", c.RedisDB)
	c.RedisQueueKey = GetEnvString("REDIS_QUEUE_KEY", c.RedisQueueKey)
	c.BlobBackend = GetEnvString("BLOB_BACKEND", c.BlobBackend)
	c.BlobDir = GetEnvString("BLOB_DIR", c.BlobDir)
	c.S3Bucket = GetEnvString("S3_BUCKET", c.S3Bucket)
	c.S3Region = GetEnvString("S3_REGION", c.S3Region)
	c.S3Endpoint = GetEnvString("S3_ENDPOINT", c.S3Endpoint)
	c.S3Prefix = GetEnvString("S3_PREFIX", c.S3Prefix)

	c.WorkerCount = GetEnvInt("WORKERS", c.WorkerCount)
	c.ScrapeConcurrency = GetEnvInt("SCRAPE_CONCURRENCY", c.ScrapeConcurrency)
	c.RequestsPerSecond = GetEnvFloat("REQUESTS_PER_SECOND", c.RequestsPerSecond)
	c.HTTPTimeout = GetEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.LeaseDuration = GetEnvDuration("LEASE", c.LeaseDuration)
	c.RetryDelay = GetEnvDuration("RETRY_DELAY", c.RetryDelay)
	c.MaxAttempts = GetEnvInt("MAX_ATTEMPTS", c.MaxAttempts)
	c.PollInterval = GetEnvDuration("POLL_INTERVAL", c.PollInterval)

	c.ServerHost = GetEnvString("HOST", c.ServerHost)
	c.ServerPort = GetEnvInt("PORT", c.ServerPort)
	c.APIKey = GetEnvString("API_KEY", c.APIKey)

	c.LogLevel = GetEnvLogLevel("LOG_LEVEL", c.LogLevel)
}

// Validate rejects values that select an unknown backend.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case ProviderOpenAI, ProviderClaude:
	default:
		return fmt.Errorf("unsupported ai provider: %q", c.AIProvider)
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.DBDriver)
	}
	switch c.QueueBackend {
	case "database", "redis":
	default:
		return fmt.Errorf("unsupported queue backend: %q", c.QueueBackend)
	}
	switch c.BlobBackend {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported blob backend: %q", c.BlobBackend)
	}
	if c.BlobBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("s3 blob backend requires a bucket")
	}
	return nil
}

// ProviderSettings returns the settings of the configured AI provider.
func (c *Config) ProviderSettings() ProviderSettings {
	if c.AIProvider == ProviderClaude {
		return ProviderSettings{Name: ProviderClaude, APIKey: c.ClaudeAPIKey, Model: c.ClaudeModel, Prompt: c.ClaudePrompt, BaseURL: c.ClaudeBaseURL}
	}
	return ProviderSettings{Name: ProviderOpenAI, APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel, Prompt: c.OpenAIPrompt, BaseURL: c.OpenAIBaseURL}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
