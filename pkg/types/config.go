package types

import "time"

// Config groups every setting the engine reads at startup. Field tags use
// mapstructure names so viper can unmarshal YAML files and
// CONTENT_ENGINE_* environment variables into it.
type Config struct {
	Server     ServerConfig               `mapstructure:"server" yaml:"server"`
	Log        LogConfig                  `mapstructure:"log" yaml:"log"`
	Store      StoreConfig                `mapstructure:"store" yaml:"store"`
	Redis      RedisConfig                `mapstructure:"redis" yaml:"redis"`
	Backends   BackendsConfig             `mapstructure:"backends" yaml:"backends"`
	Pipeline   PipelineConfig             `mapstructure:"pipeline" yaml:"pipeline"`
	Detector   DetectorConfig             `mapstructure:"detector" yaml:"detector"`
	Images     ImageConfig                `mapstructure:"images" yaml:"images"`
	Scheduler  SchedulerConfig            `mapstructure:"scheduler" yaml:"scheduler"`
	Categories map[string]CategoryProfile `mapstructure:"categories" yaml:"categories"`

	// SecretsDir holds one file per API key (see internal/secrets).
	SecretsDir string `mapstructure:"secrets_dir" yaml:"secrets_dir"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `mapstructure:"addr" yaml:"addr"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LogConfig selects the zap logger level and encoding.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// StoreDriver selects the SQL backend of the article/asset store.
type StoreDriver string

const (
	DriverSQLite   StoreDriver = "sqlite3"
	DriverPostgres StoreDriver = "pgx"
)

// StoreConfig holds settings for the persisted article/asset store.
type StoreConfig struct {
	// Driver is sqlite3 (default) or pgx.
	Driver StoreDriver `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite3 or a connection URL for pgx.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// RedisConfig enables Redis-backed locks. An empty Addr keeps locks in-process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`

	// LockTTL bounds how long a lease survives a crashed holder (default 15m).
	// Live holders renew it, so it may be shorter than a cycle.
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// Provider names a generation API family.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// BackendConfig binds one backend kind to a concrete provider, model and
// cost profile.
type BackendConfig struct {
	Provider Provider `mapstructure:"provider" yaml:"provider"`
	Model    string   `mapstructure:"model" yaml:"model"`

	// APIKey is the provider credential. Empty values are filled from the
	// secrets directory.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible APIs).
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`

	// Grounding enables the provider's search tool (Gemini only).
	Grounding bool `mapstructure:"grounding" yaml:"grounding"`

	// Timeout bounds a single attempt.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxAttempts bounds retries of transient failures (default 3).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// RatePerSecond and Burst limit calls to this backend. Zero disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`

	// Cost per million tokens in USD, used for advisory usage records.
	InputCostPerMTok  float64 `mapstructure:"input_cost_per_mtok" yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `mapstructure:"output_cost_per_mtok" yaml:"output_cost_per_mtok"`
}

// BackendsConfig holds one backend per kind. Selection is by stage identity,
// never by a free-form name at the call site.
type BackendsConfig struct {
	Research BackendConfig `mapstructure:"research" yaml:"research"`
	Draft    BackendConfig `mapstructure:"draft" yaml:"draft"`
	Humanize BackendConfig `mapstructure:"humanize" yaml:"humanize"`
	SEO      BackendConfig `mapstructure:"seo" yaml:"seo"`
	Image    BackendConfig `mapstructure:"image" yaml:"image"`
}

// PipelineConfig holds settings for the content pipeline.
type PipelineConfig struct {
	// BannedPhrases are scrubbed from every stage output.
	BannedPhrases []string `mapstructure:"banned_phrases" yaml:"banned_phrases"`

	// BannedPhrasesFile is an optional YAML list merged into BannedPhrases.
	BannedPhrasesFile string `mapstructure:"banned_phrases_file" yaml:"banned_phrases_file,omitempty"`

	// CorrectivePrompt is the text/template used for the single format-only
	// retry after a malformed stage output. Empty uses the built-in template.
	CorrectivePrompt string `mapstructure:"corrective_prompt" yaml:"corrective_prompt,omitempty"`

	// AutoPublish marks persisted articles as published.
	AutoPublish bool `mapstructure:"auto_publish" yaml:"auto_publish"`
}

// DetectorConfig overrides pattern thresholds, keyed by pattern type.
type DetectorConfig struct {
	Thresholds map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`
}

// BrandConfig holds the brand style applied to every image prompt.
type BrandConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	// Palette lists colour tokens (e.g. "deep navy #0B1F3A").
	Palette []string `mapstructure:"palette" yaml:"palette"`

	// Style lists style descriptors (e.g. "clean editorial illustration").
	Style []string `mapstructure:"style" yaml:"style"`

	// Avoid lists elements the image must not contain.
	Avoid []string `mapstructure:"avoid" yaml:"avoid"`
}

// ImageConfig holds settings for the image generation orchestrator.
type ImageConfig struct {
	// AssetsDir receives generated image files.
	AssetsDir string `mapstructure:"assets_dir" yaml:"assets_dir"`

	// Retention is how long superseded assets are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`

	// Concurrency caps articles processed in parallel within a cycle.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	Brand BrandConfig `mapstructure:"brand" yaml:"brand"`

	// PatternStyles overrides the visual style per pattern type.
	PatternStyles map[string]string `mapstructure:"pattern_styles" yaml:"pattern_styles"`

	HeroAspectRatio        string `mapstructure:"hero_aspect_ratio" yaml:"hero_aspect_ratio"`
	InfographicAspectRatio string `mapstructure:"infographic_aspect_ratio" yaml:"infographic_aspect_ratio"`
	SupportingAspectRatio  string `mapstructure:"supporting_aspect_ratio" yaml:"supporting_aspect_ratio"`
}

// SchedulerConfig holds settings for the autonomous scheduler.
type SchedulerConfig struct {
	// Interval between cycles (default 10m).
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// Autostart starts the scheduler with the server.
	Autostart bool `mapstructure:"autostart" yaml:"autostart"`

	// RunOnStart triggers a cycle immediately on Start.
	RunOnStart bool `mapstructure:"run_on_start" yaml:"run_on_start"`

	// CycleTimeout bounds one cycle.
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" yaml:"cycle_timeout"`

	// BatchSize caps the articles considered per cycle.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// CategoryProfile supplies category-specific context for prompts.
type CategoryProfile struct {
	// Audience describes who reads the category.
	Audience string `mapstructure:"audience" yaml:"audience"`

	// Context is injected into every text stage prompt.
	Context string `mapstructure:"context" yaml:"context"`

	// VisualTheme is appended to image prompts.
	VisualTheme string `mapstructure:"visual_theme" yaml:"visual_theme"`
}
