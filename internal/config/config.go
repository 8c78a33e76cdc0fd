package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full veridex configuration. Every threshold the pipeline
// applies lives here so operators can see and tune it; the defaults below
// are the documented baseline.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Gather   GatherConfig   `mapstructure:"gather" yaml:"gather"`
	Verdict  VerdictConfig  `mapstructure:"verdict" yaml:"verdict"`
	Score    ScoreConfig    `mapstructure:"score" yaml:"score"`
	NLP      NLPConfig      `mapstructure:"nlp" yaml:"nlp"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
}

// ServerConfig describes the HTTP read-side.
type ServerConfig struct {
	BindAddr       string        `mapstructure:"bind_addr" yaml:"bind_addr"`
	PageSize       int           `mapstructure:"page_size" yaml:"page_size"`
	MaxPage        int           `mapstructure:"max_page_size" yaml:"max_page_size"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// RegistryConfig locates the monitored source/creator registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// StoreConfig controls state snapshot persistence.
type StoreConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path"`
}

// PipelineConfig controls run scheduling and fan-out.
type PipelineConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	CancelGrace time.Duration `mapstructure:"cancel_grace" yaml:"cancel_grace"`
}

// FetchConfig controls outbound HTTP behavior for both source ingestion and
// evidence lookups.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	RatePerHost   float64       `mapstructure:"rate_per_host" yaml:"rate_per_host"`
	RateBurst     int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheDir      string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	HTTPProxy     string        `mapstructure:"http_proxy" yaml:"http_proxy"`
	HTTPSProxy    string        `mapstructure:"https_proxy" yaml:"https_proxy"`
	NoProxy       string        `mapstructure:"no_proxy" yaml:"no_proxy"`
}

// ExtractConfig controls claim extraction filtering.
type ExtractConfig struct {
	ConfidenceFloor float64 `mapstructure:"confidence_floor" yaml:"confidence_floor"`
}

// GatherConfig controls evidence gathering. The sufficiency threshold is
// explicit: a claim is ready for a verdict once it has MinHighGrade A/B
// items or MinLowGrade C/D items.
type GatherConfig struct {
	MinHighGrade int           `mapstructure:"min_high_grade" yaml:"min_high_grade"`
	MinLowGrade  int           `mapstructure:"min_low_grade" yaml:"min_low_grade"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxPerClaim  int           `mapstructure:"max_per_claim" yaml:"max_per_claim"`
	Authority    Authority     `mapstructure:"authority" yaml:"authority"`
}

// Authority maps evidence hosts onto reliability grades. Hosts not listed
// anywhere fall through to grade D. Primary hosts are the subset whose
// A-grade evidence can close a claim outright.
type Authority struct {
	GradeA  []string `mapstructure:"grade_a" yaml:"grade_a"`
	GradeB  []string `mapstructure:"grade_b" yaml:"grade_b"`
	GradeC  []string `mapstructure:"grade_c" yaml:"grade_c"`
	Primary []string `mapstructure:"primary" yaml:"primary"`
}

// VerdictConfig holds the grade weights, squashing constants, and label
// thresholds. These reproduce the documented defaults exactly; changing
// them changes labels, so they are configuration, not code.
type VerdictConfig struct {
	WeightA float64 `mapstructure:"weight_a" yaml:"weight_a"`
	WeightB float64 `mapstructure:"weight_b" yaml:"weight_b"`
	WeightC float64 `mapstructure:"weight_c" yaml:"weight_c"`
	WeightD float64 `mapstructure:"weight_d" yaml:"weight_d"`

	StrengthScale float64 `mapstructure:"strength_scale" yaml:"strength_scale"` // tanh scale for coverage
	ProbSlope     float64 `mapstructure:"prob_slope" yaml:"prob_slope"`         // sigmoid slope for signed sum

	VerifiedProbMin        float64 `mapstructure:"verified_prob_min" yaml:"verified_prob_min"`
	VerifiedStrengthMin    float64 `mapstructure:"verified_strength_min" yaml:"verified_strength_min"`
	MisleadingProbMax      float64 `mapstructure:"misleading_prob_max" yaml:"misleading_prob_max"`
	MisleadingStrengthMin  float64 `mapstructure:"misleading_strength_min" yaml:"misleading_strength_min"`
	SpeculativeStrengthMax float64 `mapstructure:"speculative_strength_max" yaml:"speculative_strength_max"`
}

// ScoreConfig holds scorer constants.
type ScoreConfig struct {
	ShrinkageK    int     `mapstructure:"shrinkage_k" yaml:"shrinkage_k"` // Bayesian pseudo-count
	NeutralPrior  float64 `mapstructure:"neutral_prior" yaml:"neutral_prior"`
	WilsonZ       float64 `mapstructure:"wilson_z" yaml:"wilson_z"` // 1.6449 = 90% confidence
	DiamondMin    float64 `mapstructure:"diamond_min" yaml:"diamond_min"`
	DiamondSample int     `mapstructure:"diamond_sample" yaml:"diamond_sample"`
	GoldMin       float64 `mapstructure:"gold_min" yaml:"gold_min"`
	SilverMin     float64 `mapstructure:"silver_min" yaml:"silver_min"`
	BronzeMin     float64 `mapstructure:"bronze_min" yaml:"bronze_min"`
}

// NLPConfig configures the optional external NLP provider used for claim
// extraction and evidence search. Empty provider means heuristics only.
type NLPConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"` // "openai" or ""
	Model     string        `mapstructure:"model" yaml:"model"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// Default returns the documented baseline configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			BindAddr:       "0.0.0.0:8080",
			PageSize:       50,
			MaxPage:        200,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 25 * time.Second,
		},
		Registry: RegistryConfig{Path: "registry.yaml"},
		Store:    StoreConfig{SnapshotPath: ""},
		Pipeline: PipelineConfig{
			Interval:    6 * time.Hour,
			Workers:     8,
			CancelGrace: 10 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "Veridex/0.1 (+https://github.com/veridexhq/veridex)",
			MaxBodyBytes:  2 << 20,
			MaxAttempts:   3,
			BackoffBase:   500 * time.Millisecond,
			RatePerHost:   2,
			RateBurst:     5,
			RespectRobots: true,
			CacheTTL:      30 * time.Minute,
		},
		Extract: ExtractConfig{ConfidenceFloor: 0.5},
		Gather: GatherConfig{
			MinHighGrade: 1,
			MinLowGrade:  3,
			MaxRetries:   2,
			BackoffBase:  500 * time.Millisecond,
			Timeout:      15 * time.Second,
			MaxPerClaim:  8,
			Authority: Authority{
				GradeA: []string{
					"sec.gov", "cftc.gov", "treasury.gov", "esma.europa.eu",
					"fca.org.uk", "bis.org", "federalreserve.gov", "justice.gov",
				},
				GradeB: []string{
					"reuters.com", "bloomberg.com", "ft.com", "wsj.com",
					"coindesk.com", "theblock.co", "apnews.com",
				},
				GradeC: []string{
					"cointelegraph.com", "decrypt.co", "cryptoslate.com",
					"businessinsider.com", "forbes.com",
				},
				Primary: []string{
					"sec.gov", "cftc.gov", "treasury.gov", "esma.europa.eu",
					"fca.org.uk", "justice.gov",
				},
			},
		},
		Verdict: VerdictConfig{
			WeightA:                1.0,
			WeightB:                0.7,
			WeightC:                0.4,
			WeightD:                0.15,
			StrengthScale:          0.8,
			ProbSlope:              1.5,
			VerifiedProbMin:        0.75,
			VerifiedStrengthMin:    0.6,
			MisleadingProbMax:      0.25,
			MisleadingStrengthMin:  0.4,
			SpeculativeStrengthMax: 0.25,
		},
		Score: ScoreConfig{
			ShrinkageK:    10,
			NeutralPrior:  50,
			WilsonZ:       1.6449,
			DiamondMin:    85,
			DiamondSample: 30,
			GoldMin:       70,
			SilverMin:     55,
			BronzeMin:     40,
		},
		NLP: NLPConfig{
			Provider:  "",
			Timeout:   30 * time.Second,
			MaxTokens: 1500,
		},
	}
}

// Load builds the effective configuration from viper (flags > env > file >
// defaults) and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Interval <= 0 {
		return fmt.Errorf("pipeline.interval must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be positive")
	}
	if c.Extract.ConfidenceFloor < 0 || c.Extract.ConfidenceFloor > 1 {
		return fmt.Errorf("extract.confidence_floor must be in [0,1]")
	}
	if c.Gather.MinHighGrade <= 0 || c.Gather.MinLowGrade <= 0 {
		return fmt.Errorf("gather sufficiency thresholds must be positive")
	}
	if c.Verdict.VerifiedProbMin <= c.Verdict.MisleadingProbMax {
		return fmt.Errorf("verdict.verified_prob_min must exceed verdict.misleading_prob_max")
	}
	if c.Score.ShrinkageK < 0 {
		return fmt.Errorf("score.shrinkage_k cannot be negative")
	}
	if c.Score.NeutralPrior < 0 || c.Score.NeutralPrior > 100 {
		return fmt.Errorf("score.neutral_prior must be in [0,100]")
	}
	if c.Server.PageSize <= 0 || c.Server.MaxPage < c.Server.PageSize {
		return fmt.Errorf("server page sizes invalid")
	}
	return nil
}
