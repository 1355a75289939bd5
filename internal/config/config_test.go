package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Score: ScoreConfig{
			EngineVersion:           "rift-1",
			PaymentHistoryWeight:    0.25,
			BusinessLongevityWeight: 0.10,
			IndustryRiskWeight:      0.10,
			FinancialHealthWeight:   0.20,
			SanctionsCleanWeight:    0.15,
			DocCompletenessWeight:   0.15,
			ESGSignalWeight:         0.05,
			CutoffA:                 85,
			CutoffB:                 70,
			CutoffC:                 55,
		},
		Pricing: PricingConfig{
			ConfigVersion: "pricing-1",
			RiskFreeRate:  3.0,
			PremiumA:      2.0,
			PremiumB:      5.0,
			PremiumC:      8.0,
			MinAnnualRate: 1.0,
			MaxAnnualRate: 20.0,
		},
		Ledger:  LedgerConfig{APR30: 5.0, APR90: 7.5, APR120: 9.0},
		Gate:    GateConfig{Mode: "mock"},
		Adapter: AdapterConfig{Mode: "mock"},
	}
}

func TestConfig_Validate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_WeightSum(t *testing.T) {
	cfg := validConfig()
	cfg.Score.ESGSignalWeight = 0.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestConfig_Validate_CutoffOrder(t *testing.T) {
	cfg := validConfig()
	cfg.Score.CutoffB = 90
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cutoffs")
}

func TestConfig_Validate_ClampBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Pricing.MaxAnnualRate = 0.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clamp")
}

func TestConfig_Validate_LiveAdapterNeedsURL(t *testing.T) {
	cfg := validConfig()
	cfg.Adapter.Mode = "live"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLedgerConfig_APRForTenor(t *testing.T) {
	cfg := LedgerConfig{APR30: 5, APR90: 7.5, APR120: 9}
	assert.Equal(t, 5.0, cfg.APRForTenor(30))
	assert.Equal(t, 7.5, cfg.APRForTenor(90))
	assert.Equal(t, 9.0, cfg.APRForTenor(120))
	assert.Equal(t, 0.0, cfg.APRForTenor(60))
}

func TestScoreConfig_Weights(t *testing.T) {
	cfg := validConfig().Score
	w := cfg.Weights()
	assert.Len(t, w, 7)
	assert.InDelta(t, 1.0, cfg.WeightSum(), 0.0001)
}
