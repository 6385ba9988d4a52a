// Package config loads and validates webintel configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/webintel/internal/crawler"
	"github.com/JakeFAU/webintel/internal/gather"
	"github.com/JakeFAU/webintel/internal/httpclient"
	"github.com/JakeFAU/webintel/internal/policy/ratelimit"
	"github.com/JakeFAU/webintel/internal/sources"
)

// EnvPrefix prefixes every environment override, e.g. WEBINTEL_CRAWLER_MAX_PAGES.
const EnvPrefix = "WEBINTEL"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig        `mapstructure:"crawler"`
	HTTP      HTTPConfig           `mapstructure:"http"`
	Sources   SourcesConfig        `mapstructure:"sources"`
	Gather    GatherConfig         `mapstructure:"gather"`
	Logging   LoggingConfig        `mapstructure:"logging"`
	Telemetry TelemetryConfig      `mapstructure:"telemetry"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
	Keywords  crawler.KeywordTable `mapstructure:"keywords"`
}

// CrawlerConfig bounds a single site crawl.
type CrawlerConfig struct {
	MaxPages                int                `mapstructure:"max_pages"`
	MaxDepth                int                `mapstructure:"max_depth"`
	MaxConcurrent           int                `mapstructure:"max_concurrent"`
	MinQualityPages         int                `mapstructure:"min_quality_pages"`
	SitemapLimit            int                `mapstructure:"sitemap_limit"`
	LinksPerPage            int                `mapstructure:"links_per_page"`
	RequiredCategories      []crawler.Category `mapstructure:"required_categories"`
	RequiredCategoryMatches int                `mapstructure:"required_category_matches"`
}

// HTTPConfig configures the shared connection pool and the fetcher.
type HTTPConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	UserAgent           string        `mapstructure:"user_agent"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DNSCacheTTL         time.Duration `mapstructure:"dns_cache_ttl"`
	MaxBodyBytes        int           `mapstructure:"max_body_bytes"`
	RateLimitRPS        float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst      int           `mapstructure:"rate_limit_burst"`
}

// SourcesConfig toggles the optional gathering sources.
type SourcesConfig struct {
	EnableBlog              bool   `mapstructure:"enable_blog"`
	EnableSocial            bool   `mapstructure:"enable_social"`
	EnableVideo             bool   `mapstructure:"enable_video"`
	EnableJobs              bool   `mapstructure:"enable_jobs"`
	EnableFallbackJobSearch bool   `mapstructure:"enable_fallback_job_search"`
	BlogMaxPosts            int    `mapstructure:"blog_max_posts"`
	SearchEndpoint          string `mapstructure:"search_endpoint"`
	SearchResultSelector    string `mapstructure:"search_result_selector"`
}

// GatherConfig bounds a gathering session.
type GatherConfig struct {
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	SourceTimeout  time.Duration `mapstructure:"source_timeout"`
}

// LoggingConfig toggles zap development features. An empty Level keeps the
// preset's default.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyKeywordDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	crawl := crawler.DefaultConfig()
	v.SetDefault("crawler.max_pages", crawl.MaxPages)
	v.SetDefault("crawler.max_depth", crawl.MaxDepth)
	v.SetDefault("crawler.max_concurrent", crawl.MaxConcurrent)
	v.SetDefault("crawler.min_quality_pages", crawl.Coverage.MinQualityPages)
	v.SetDefault("crawler.sitemap_limit", crawl.SitemapLimit)
	v.SetDefault("crawler.links_per_page", crawl.LinksPerPage)
	v.SetDefault("crawler.required_categories", []string{"product", "about", "pricing"})
	v.SetDefault("crawler.required_category_matches", crawl.Coverage.RequiredMatches)

	pool := httpclient.DefaultConfig()
	v.SetDefault("http.timeout", pool.Timeout)
	v.SetDefault("http.user_agent", pool.UserAgent)
	v.SetDefault("http.max_idle_conns", pool.MaxIdleConns)
	v.SetDefault("http.max_idle_conns_per_host", pool.MaxIdleConnsPerHost)
	v.SetDefault("http.max_conns_per_host", pool.MaxConnsPerHost)
	v.SetDefault("http.idle_conn_timeout", pool.IdleConnTimeout)
	v.SetDefault("http.dns_cache_ttl", pool.DNSCacheTTL)
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)

	v.SetDefault("sources.enable_blog", true)
	v.SetDefault("sources.enable_social", true)
	v.SetDefault("sources.enable_video", true)
	v.SetDefault("sources.enable_jobs", true)
	v.SetDefault("sources.enable_fallback_job_search", true)
	v.SetDefault("sources.blog_max_posts", 5)
	v.SetDefault("sources.search_endpoint", sources.DefaultSearchEndpoint)
	v.SetDefault("sources.search_result_selector", sources.DefaultResultSelector)

	session := gather.DefaultConfig()
	v.SetDefault("gather.session_timeout", session.SessionTimeout)
	v.SetDefault("gather.source_timeout", session.SourceTimeout)

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "webintel")
	v.SetDefault("metrics.addr", "")
}

// applyKeywordDefaults fills whichever half of the keyword table the file
// left out.
func (c *Config) applyKeywordDefaults() {
	defaults := crawler.DefaultKeywordTable()
	if len(c.Keywords.Priority) == 0 {
		c.Keywords.Priority = defaults.Priority
	}
	if len(c.Keywords.Categories) == 0 {
		c.Keywords.Categories = defaults.Categories
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.CrawlerConfig().Validate(); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.MaxIdleConns < 0 || c.HTTP.MaxIdleConnsPerHost < 0 || c.HTTP.MaxConnsPerHost < 0 {
		return errors.New("http connection limits must be >= 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return errors.New("http.rate_limit_rps must be >= 0")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		return errors.New("http.rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if c.Sources.BlogMaxPosts <= 0 {
		return errors.New("sources.blog_max_posts must be > 0")
	}
	if c.Sources.EnableFallbackJobSearch && c.Sources.SearchEndpoint == "" {
		return errors.New("sources.search_endpoint must be set when the job search fallback is enabled")
	}
	if err := c.GatherConfig().Validate(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("telemetry.service_name must be set when telemetry is enabled")
	}
	return nil
}

// CrawlerConfig maps the crawler and keyword sections onto crawler.Config.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		MaxPages:      c.Crawler.MaxPages,
		MaxDepth:      c.Crawler.MaxDepth,
		MaxConcurrent: c.Crawler.MaxConcurrent,
		SitemapLimit:  c.Crawler.SitemapLimit,
		LinksPerPage:  c.Crawler.LinksPerPage,
		Coverage: crawler.CoverageConfig{
			MinQualityPages:    c.Crawler.MinQualityPages,
			RequiredCategories: c.Crawler.RequiredCategories,
			RequiredMatches:    c.Crawler.RequiredCategoryMatches,
		},
		Keywords: c.Keywords.Normalize(),
	}
}

// HTTPClientConfig maps the http section onto the shared pool settings.
func (c Config) HTTPClientConfig() httpclient.Config {
	return httpclient.Config{
		Timeout:             c.HTTP.Timeout,
		UserAgent:           c.HTTP.UserAgent,
		MaxIdleConns:        c.HTTP.MaxIdleConns,
		MaxIdleConnsPerHost: c.HTTP.MaxIdleConnsPerHost,
		MaxConnsPerHost:     c.HTTP.MaxConnsPerHost,
		IdleConnTimeout:     c.HTTP.IdleConnTimeout,
		DNSCacheTTL:         c.HTTP.DNSCacheTTL,
	}
}

// RateLimitConfig returns the per-host politeness limits.
func (c Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{RPS: c.HTTP.RateLimitRPS, Burst: c.HTTP.RateLimitBurst}
}

// GatherConfig returns the session bounds.
func (c Config) GatherConfig() gather.Config {
	return gather.Config{SessionTimeout: c.Gather.SessionTimeout, SourceTimeout: c.Gather.SourceTimeout}
}

// EnabledSources lists the optional sources switched on, in run order.
func (c Config) EnabledSources() []sources.Name {
	var out []sources.Name
	for _, s := range []struct {
		name    sources.Name
		enabled bool
	}{
		{sources.NameBlog, c.Sources.EnableBlog},
		{sources.NameSocial, c.Sources.EnableSocial},
		{sources.NameVideo, c.Sources.EnableVideo},
		{sources.NameJobs, c.Sources.EnableJobs},
	} {
		if s.enabled {
			out = append(out, s.name)
		}
	}
	return out
}
