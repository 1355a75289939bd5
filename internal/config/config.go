// Package config loads and validates the application configuration. All
// pricing tables, scoring weights, and clamp bounds live here so that
// re-running an old quote or score with the same config version is
// reproducible.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Score   ScoreConfig   `yaml:"score" mapstructure:"score"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Ledger  LedgerConfig  `yaml:"ledger" mapstructure:"ledger"`
	Gate    GateConfig    `yaml:"gate" mapstructure:"gate"`
	Adapter AdapterConfig `yaml:"adapter" mapstructure:"adapter"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoreConfig holds the composite score weight table and grade cutoffs.
// Weights must sum to 1.0.
type ScoreConfig struct {
	EngineVersion string `yaml:"engine_version" mapstructure:"engine_version"`

	PaymentHistoryWeight    float64 `yaml:"payment_history_weight" mapstructure:"payment_history_weight"`
	BusinessLongevityWeight float64 `yaml:"business_longevity_weight" mapstructure:"business_longevity_weight"`
	IndustryRiskWeight      float64 `yaml:"industry_risk_weight" mapstructure:"industry_risk_weight"`
	FinancialHealthWeight   float64 `yaml:"financial_health_weight" mapstructure:"financial_health_weight"`
	SanctionsCleanWeight    float64 `yaml:"sanctions_clean_weight" mapstructure:"sanctions_clean_weight"`
	DocCompletenessWeight   float64 `yaml:"doc_completeness_weight" mapstructure:"doc_completeness_weight"`
	ESGSignalWeight         float64 `yaml:"esg_signal_weight" mapstructure:"esg_signal_weight"`

	CutoffA float64 `yaml:"cutoff_a" mapstructure:"cutoff_a"`
	CutoffB float64 `yaml:"cutoff_b" mapstructure:"cutoff_b"`
	CutoffC float64 `yaml:"cutoff_c" mapstructure:"cutoff_c"`
}

// Weights returns the weight table keyed by factor name.
func (c ScoreConfig) Weights() map[string]float64 {
	return map[string]float64{
		"payment_history":    c.PaymentHistoryWeight,
		"business_longevity": c.BusinessLongevityWeight,
		"industry_risk":      c.IndustryRiskWeight,
		"financial_health":   c.FinancialHealthWeight,
		"sanctions_clean":    c.SanctionsCleanWeight,
		"doc_completeness":   c.DocCompletenessWeight,
		"esg_signal":         c.ESGSignalWeight,
	}
}

// WeightSum returns the sum of all factor weights.
func (c ScoreConfig) WeightSum() float64 {
	var sum float64
	for _, w := range c.Weights() {
		sum += w
	}
	return sum
}

// PricingConfig holds the per-grade pricing tables and the hard clamp on
// the annual net rate. Day counts are deliberately split: discount yield
// uses a 360-day year, pool accrual uses 365 (see LedgerConfig).
type PricingConfig struct {
	ConfigVersion string  `yaml:"config_version" mapstructure:"config_version"`
	RiskFreeRate  float64 `yaml:"risk_free_rate" mapstructure:"risk_free_rate"`

	PremiumA float64 `yaml:"premium_a" mapstructure:"premium_a"`
	PremiumB float64 `yaml:"premium_b" mapstructure:"premium_b"`
	PremiumC float64 `yaml:"premium_c" mapstructure:"premium_c"`

	// Insurance cost in annual percentage points. Grade A is opt-in;
	// B and C are mandatory and cannot be disabled by the caller.
	InsuranceOptInA float64 `yaml:"insurance_opt_in_a" mapstructure:"insurance_opt_in_a"`
	InsuranceB      float64 `yaml:"insurance_b" mapstructure:"insurance_b"`
	InsuranceC      float64 `yaml:"insurance_c" mapstructure:"insurance_c"`

	// ESGAdjustment is added to the annual rate when the ESG toggle is on.
	// Negative values lower the seller's cost.
	ESGAdjustment float64 `yaml:"esg_adjustment" mapstructure:"esg_adjustment"`

	MinAnnualRate float64 `yaml:"min_annual_rate" mapstructure:"min_annual_rate"`
	MaxAnnualRate float64 `yaml:"max_annual_rate" mapstructure:"max_annual_rate"`
}

// LedgerConfig configures the liquidity pools.
type LedgerConfig struct {
	APR30  float64 `yaml:"apr_30" mapstructure:"apr_30"`
	APR90  float64 `yaml:"apr_90" mapstructure:"apr_90"`
	APR120 float64 `yaml:"apr_120" mapstructure:"apr_120"`
}

// APRForTenor returns the configured APR for a pool tenor, or 0 when the
// tenor is not supported.
func (c LedgerConfig) APRForTenor(tenorDays int) float64 {
	switch tenorDays {
	case 30:
		return c.APR30
	case 90:
		return c.APR90
	case 120:
		return c.APR120
	}
	return 0
}

// GateMethodConfig describes one verification method.
type GateMethodConfig struct {
	RequireSanctions bool `yaml:"require_sanctions" mapstructure:"require_sanctions"`
}

// GateConfig configures the access gate.
type GateConfig struct {
	Mode    string                      `yaml:"mode" mapstructure:"mode"`
	Methods map[string]GateMethodConfig `yaml:"methods" mapstructure:"methods"`
}

// AdapterConfig configures the risk adapter port.
type AdapterConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`

	// Simulated latency bounds for the mock adapter. Tests set both to 0.
	MockLatencyMinMs int `yaml:"mock_latency_min_ms" mapstructure:"mock_latency_min_ms"`
	MockLatencyMaxMs int `yaml:"mock_latency_max_ms" mapstructure:"mock_latency_max_ms"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "riftcore.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("score.engine_version", "rift-1")
	v.SetDefault("score.payment_history_weight", 0.25)
	v.SetDefault("score.business_longevity_weight", 0.10)
	v.SetDefault("score.industry_risk_weight", 0.10)
	v.SetDefault("score.financial_health_weight", 0.20)
	v.SetDefault("score.sanctions_clean_weight", 0.15)
	v.SetDefault("score.doc_completeness_weight", 0.15)
	v.SetDefault("score.esg_signal_weight", 0.05)
	v.SetDefault("score.cutoff_a", 85.0)
	v.SetDefault("score.cutoff_b", 70.0)
	v.SetDefault("score.cutoff_c", 55.0)

	v.SetDefault("pricing.config_version", "pricing-1")
	v.SetDefault("pricing.risk_free_rate", 3.0)
	v.SetDefault("pricing.premium_a", 2.0)
	v.SetDefault("pricing.premium_b", 5.0)
	v.SetDefault("pricing.premium_c", 8.0)
	v.SetDefault("pricing.insurance_opt_in_a", 0.5)
	v.SetDefault("pricing.insurance_b", 1.0)
	v.SetDefault("pricing.insurance_c", 2.5)
	v.SetDefault("pricing.esg_adjustment", -0.25)
	v.SetDefault("pricing.min_annual_rate", 1.0)
	v.SetDefault("pricing.max_annual_rate", 20.0)

	v.SetDefault("ledger.apr_30", 5.0)
	v.SetDefault("ledger.apr_90", 7.5)
	v.SetDefault("ledger.apr_120", 9.0)

	v.SetDefault("gate.mode", "live")
	v.SetDefault("gate.methods", map[string]map[string]bool{
		"standard": {"require_sanctions": true},
		"basic":    {"require_sanctions": false},
	})

	v.SetDefault("adapter.mode", "mock")
	v.SetDefault("adapter.timeout_secs", 10)
	v.SetDefault("adapter.rate_limit_per_sec", 5.0)
	v.SetDefault("adapter.rate_limit_burst", 10)
	v.SetDefault("adapter.mock_latency_min_ms", 500)
	v.SetDefault("adapter.mock_latency_max_ms", 3000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks internal consistency of the engine tables.
func (c *Config) Validate() error {
	var errs []string

	for name, w := range c.Score.Weights() {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("score.%s_weight must be >= 0", name))
		}
	}
	if math.Abs(c.Score.WeightSum()-1.0) > 0.001 {
		errs = append(errs, fmt.Sprintf("score weights must sum to 1.0, got %.3f", c.Score.WeightSum()))
	}
	if !(c.Score.CutoffA > c.Score.CutoffB && c.Score.CutoffB > c.Score.CutoffC && c.Score.CutoffC > 0) {
		errs = append(errs, "score cutoffs must satisfy a > b > c > 0")
	}

	if c.Pricing.MinAnnualRate <= 0 || c.Pricing.MaxAnnualRate <= c.Pricing.MinAnnualRate {
		errs = append(errs, "pricing clamp bounds must satisfy 0 < min < max")
	}
	if c.Pricing.PremiumA < 0 || c.Pricing.PremiumB < c.Pricing.PremiumA || c.Pricing.PremiumC < c.Pricing.PremiumB {
		errs = append(errs, "pricing premiums must be non-negative and non-decreasing across A/B/C")
	}

	for _, tenor := range []int{30, 90, 120} {
		if c.Ledger.APRForTenor(tenor) <= 0 {
			errs = append(errs, fmt.Sprintf("ledger apr for %d-day pool must be > 0", tenor))
		}
	}

	if c.Gate.Mode != "mock" && c.Gate.Mode != "live" {
		errs = append(errs, fmt.Sprintf("gate.mode must be mock or live, got %q", c.Gate.Mode))
	}
	if c.Adapter.Mode != "mock" && c.Adapter.Mode != "live" {
		errs = append(errs, fmt.Sprintf("adapter.mode must be mock or live, got %q", c.Adapter.Mode))
	}
	if c.Adapter.Mode == "live" && c.Adapter.BaseURL == "" {
		errs = append(errs, "adapter.base_url is required in live mode")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
