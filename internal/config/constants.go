package config

import "time"

// EnvPrefix is prepended to every environment variable read by this package.
const EnvPrefix = "TRENDS_"

// Constants defining default values for application configuration
const (
	DefaultFeedURL      = "https://trends.google.com/trending/rss?geo=US"
	DefaultCronSchedule = "@hourly"
	DefaultMinTraffic   = 0
	DefaultMaxTrends    = 5

	DefaultAIProvider  = "openai"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultClaudeModel = "claude-3-5-haiku-20241022"

	DefaultAIMaxTokens    = 2000
	DefaultAITemperature  = 0.7
	DefaultMaxSourceChars = 24000
	DefaultMaxImages      = 10

	DefaultContentType   = "article"
	DefaultBodyFormat    = "full_html"
	DefaultImageField    = "field_image"
	DefaultTagsField     = "field_tags"
	DefaultTagVocabulary = "tags"

	DefaultDBDriver = "sqlite3"
	DefaultDBDSN    = "./trends.db"

	DefaultQueueBackend  = "database"
	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisQueueKey = "trends:queue"

	DefaultBlobBackend = "local"
	DefaultBlobDir     = "./files"
	DefaultS3Region    = "us-east-1"

	DefaultWorkerCount       = 2
	DefaultScrapeConcurrency = 4
	DefaultRequestsPerSecond = 5

	DefaultHTTPTimeout   = 10 * time.Second
	DefaultAITimeout     = 120 * time.Second
	DefaultLeaseDuration = 10 * time.Minute
	DefaultRetryDelay    = 5 * time.Minute
	DefaultMaxAttempts   = 5
	DefaultPollInterval  = 5 * time.Second

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultLogLevel = "info"

	// TitleSeparator and TagsSeparator delimit the sections of a model response.
	TitleSeparator = "---TITLE_SEPARATOR---"
	TagsSeparator  = "---TAGS_SEPARATOR---"
)

// DefaultPromptTemplate receives the trend title, the scraped source text and
// the comma separated list of known tags, in that order.
const DefaultPromptTemplate = `You are a news editor. Write an original, factual article about the trending topic "%s".

Use only the source material below. Do not copy sentences verbatim.

Source material:
%s

Existing tags: %s

Answer in exactly this layout:
<the article title>
` + TitleSeparator + `
<the article body as HTML paragraphs>
` + TagsSeparator + `
<up to five comma separated tags, preferring existing tags>`
