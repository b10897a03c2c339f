package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	//===============
	// Crawl defaults
	//===============
	// Hard cap of pages per crawl job
	maxPages int
	// Maximum number of hyperlink hops from a seed URL
	maxDepth int
	// Minimum waiting time between two HTTP requests to the same host
	crawlDelay time.Duration
	// Whether robots.txt is consulted before fetching
	respectRobots bool
	// Whether discovered links are followed at all
	followLinks bool
	// Restrict the crawl to the seed URL's host
	sameHostOnly bool

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request
	fetchTimeout time.Duration
	// Maximum redirects followed per request
	maxRedirects int
	// Maximum accepted response body size in bytes
	maxBodyBytes int64
	// maximum attempts for a single URL fetch
	maxAttempts int
	// User agent used in request headers
	userAgent string

	//===============
	// Scheduler
	//===============
	// Worker pool size; caps in-flight crawl jobs
	maxConcurrentTasks int
	// Per-job deadline
	taskTimeout time.Duration
	// Max retries granted on timeout or transient job failure
	retryAttempts int

	//===============
	// Search
	//===============
	// Minimum relevance for a search result to be returned
	resultFilteringThreshold float64
	// Per-provider hourly request cap
	searchRateLimit int
	// Whether discovered URLs are enqueued as low-priority crawl jobs
	enqueueDiscovered bool
	// Provider credentials; empty disables the provider
	googleAPIKey  string
	googleCSEID   string
	bingAPIKey    string
	searchTimeout time.Duration

	//===============
	// Storage & logging
	//===============
	dbPath   string
	logLevel string
	logDir   string
}

const (
	defaultMaxPages           = 50
	defaultMaxDepth           = 3
	defaultCrawlDelay         = 1 * time.Second
	defaultFetchTimeout       = 30 * time.Second
	defaultMaxRedirects       = 5
	defaultMaxBodyBytes       = 10 << 20
	defaultMaxAttempts        = 3
	defaultUserAgent          = "lore-crawler/1.0"
	defaultMaxConcurrentTasks = 3
	defaultTaskTimeout        = 300 * time.Second
	defaultRetryAttempts      = 3
	defaultResultThreshold    = 0.2
	defaultSearchRateLimit    = 100
	defaultSearchTimeout      = 5 * time.Second
	defaultDBPath             = "lore.db"
)

// Default returns a Config with every knob at its documented default.
func Default() Config {
	return Config{
		maxPages:                 defaultMaxPages,
		maxDepth:                 defaultMaxDepth,
		crawlDelay:               defaultCrawlDelay,
		respectRobots:            true,
		followLinks:              true,
		sameHostOnly:             true,
		fetchTimeout:             defaultFetchTimeout,
		maxRedirects:             defaultMaxRedirects,
		maxBodyBytes:             defaultMaxBodyBytes,
		maxAttempts:              defaultMaxAttempts,
		userAgent:                defaultUserAgent,
		maxConcurrentTasks:       defaultMaxConcurrentTasks,
		taskTimeout:              defaultTaskTimeout,
		retryAttempts:            defaultRetryAttempts,
		resultFilteringThreshold: defaultResultThreshold,
		searchRateLimit:          defaultSearchRateLimit,
		searchTimeout:            defaultSearchTimeout,
		dbPath:                   defaultDBPath,
		logLevel:                 "info",
	}
}

// Load reads configuration from an optional file and the environment.
// Environment variables are prefixed LORECRAWLER (e.g. LORECRAWLER_DB_PATH,
// LORECRAWLER_GOOGLE_API_KEY). A missing file falls back to defaults;
// missing provider credentials disable the corresponding provider rather
// than erroring.
func Load(configPath string) (Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("LORECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && configPath != "" {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	cfg := Config{
		maxPages:                 v.GetInt("max_pages"),
		maxDepth:                 v.GetInt("max_depth"),
		crawlDelay:               time.Duration(v.GetFloat64("crawl_delay") * float64(time.Second)),
		respectRobots:            v.GetBool("respect_robots"),
		followLinks:              v.GetBool("follow_links"),
		sameHostOnly:             v.GetBool("same_host_only"),
		fetchTimeout:             v.GetDuration("fetch_timeout"),
		maxRedirects:             v.GetInt("max_redirects"),
		maxBodyBytes:             v.GetInt64("max_body_bytes"),
		maxAttempts:              v.GetInt("max_attempts"),
		userAgent:                v.GetString("user_agent"),
		maxConcurrentTasks:       v.GetInt("max_concurrent_tasks"),
		taskTimeout:              time.Duration(v.GetFloat64("task_timeout") * float64(time.Second)),
		retryAttempts:            v.GetInt("retry_attempts"),
		resultFilteringThreshold: v.GetFloat64("result_filtering_threshold"),
		searchRateLimit:          v.GetInt("search_rate_limit"),
		enqueueDiscovered:        v.GetBool("enqueue_discovered"),
		googleAPIKey:             v.GetString("google_api_key"),
		googleCSEID:              v.GetString("google_cse_id"),
		bingAPIKey:               v.GetString("bing_api_key"),
		searchTimeout:            v.GetDuration("search_timeout"),
		dbPath:                   v.GetString("db_path"),
		logLevel:                 v.GetString("log_level"),
		logDir:                   v.GetString("log_dir"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_pages", defaultMaxPages)
	v.SetDefault("max_depth", defaultMaxDepth)
	v.SetDefault("crawl_delay", 1.0)
	v.SetDefault("respect_robots", true)
	v.SetDefault("follow_links", true)
	v.SetDefault("same_host_only", true)
	v.SetDefault("fetch_timeout", defaultFetchTimeout)
	v.SetDefault("max_redirects", defaultMaxRedirects)
	v.SetDefault("max_body_bytes", int64(defaultMaxBodyBytes))
	v.SetDefault("max_attempts", defaultMaxAttempts)
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("max_concurrent_tasks", defaultMaxConcurrentTasks)
	v.SetDefault("task_timeout", 300.0)
	v.SetDefault("retry_attempts", defaultRetryAttempts)
	v.SetDefault("result_filtering_threshold", defaultResultThreshold)
	v.SetDefault("search_rate_limit", defaultSearchRateLimit)
	v.SetDefault("enqueue_discovered", false)
	v.SetDefault("search_timeout", defaultSearchTimeout)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "")
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c Config) Validate() error {
	if c.maxPages < 1 {
		return fmt.Errorf("%w: max_pages must be >= 1, got %d", ErrInvalidConfig, c.maxPages)
	}
	if c.maxDepth < 0 {
		return fmt.Errorf("%w: max_depth must be >= 0, got %d", ErrInvalidConfig, c.maxDepth)
	}
	if c.crawlDelay < 0 {
		return fmt.Errorf("%w: crawl_delay must be >= 0, got %v", ErrInvalidConfig, c.crawlDelay)
	}
	if c.maxConcurrentTasks < 1 {
		return fmt.Errorf("%w: max_concurrent_tasks must be >= 1, got %d", ErrInvalidConfig, c.maxConcurrentTasks)
	}
	if c.retryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts must be >= 0, got %d", ErrInvalidConfig, c.retryAttempts)
	}
	if c.resultFilteringThreshold < 0 || c.resultFilteringThreshold > 1 {
		return fmt.Errorf("%w: result_filtering_threshold must be in [0,1], got %f", ErrInvalidConfig, c.resultFilteringThreshold)
	}
	if c.searchRateLimit < 0 {
		return fmt.Errorf("%w: search_rate_limit must be >= 0, got %d", ErrInvalidConfig, c.searchRateLimit)
	}
	return nil
}

func (c Config) MaxPages() int                     { return c.maxPages }
func (c Config) MaxDepth() int                     { return c.maxDepth }
func (c Config) CrawlDelay() time.Duration         { return c.crawlDelay }
func (c Config) RespectRobots() bool               { return c.respectRobots }
func (c Config) FollowLinks() bool                 { return c.followLinks }
func (c Config) SameHostOnly() bool                { return c.sameHostOnly }
func (c Config) FetchTimeout() time.Duration       { return c.fetchTimeout }
func (c Config) MaxRedirects() int                 { return c.maxRedirects }
func (c Config) MaxBodyBytes() int64               { return c.maxBodyBytes }
func (c Config) MaxAttempts() int                  { return c.maxAttempts }
func (c Config) UserAgent() string                 { return c.userAgent }
func (c Config) MaxConcurrentTasks() int           { return c.maxConcurrentTasks }
func (c Config) TaskTimeout() time.Duration        { return c.taskTimeout }
func (c Config) RetryAttempts() int                { return c.retryAttempts }
func (c Config) ResultFilteringThreshold() float64 { return c.resultFilteringThreshold }
func (c Config) SearchRateLimit() int              { return c.searchRateLimit }
func (c Config) EnqueueDiscovered() bool           { return c.enqueueDiscovered }
func (c Config) GoogleAPIKey() string              { return c.googleAPIKey }
func (c Config) GoogleCSEID() string               { return c.googleCSEID }
func (c Config) BingAPIKey() string                { return c.bingAPIKey }
func (c Config) SearchTimeout() time.Duration      { return c.searchTimeout }
func (c Config) DBPath() string                    { return c.dbPath }
func (c Config) LogLevel() string                  { return c.logLevel }
func (c Config) LogDir() string                    { return c.logDir }

// WithDBPath returns a copy with the store path overridden. Used by the
// CLI --db flag and by tests that point the store at a temp file.
func (c Config) WithDBPath(path string) Config {
	c.dbPath = path
	return c
}
