package spread

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config holds the estimator knobs. Zero-valued fields take the `default` tag value via DefaultConfig
// or the config loader.
type Config struct {
	Lookback int `yaml:"lookback" json:"lookback" default:"100" validate:"gte=3,lte=100000"`

	// Logistic entry threshold: theta = ThetaMin + (ThetaMax-ThetaMin)/(1+exp(-Steepness*(sigma/SigmaBaseline-1))).
	ThetaMin      float64 `yaml:"theta_min" json:"theta_min" default:"1.5" validate:"gt=0"`
	ThetaMax      float64 `yaml:"theta_max" json:"theta_max" default:"3.0" validate:"gtefield=ThetaMin"`
	Steepness     float64 `yaml:"steepness" json:"steepness" default:"2.0" validate:"gt=0"`
	SigmaBaseline float64 `yaml:"sigma_baseline" json:"sigma_baseline" default:"0.05" validate:"gt=0"`

	ExitZ  float64 `yaml:"exit_z" json:"exit_z" default:"0.5" validate:"gte=0,ltfield=ThetaMin"`
	ZClamp float64 `yaml:"z_clamp" json:"z_clamp" default:"10" validate:"gt=0"`

	LambdaMin     float64 `yaml:"lambda_min" json:"lambda_min" default:"0.001" validate:"gt=0"`
	LambdaMax     float64 `yaml:"lambda_max" json:"lambda_max" default:"5.0" validate:"gtfield=LambdaMin"`
	SigmaMin      float64 `yaml:"sigma_min" json:"sigma_min" default:"0.001" validate:"gt=0"`
	SigmaMax      float64 `yaml:"sigma_max" json:"sigma_max" default:"1000" validate:"gtfield=SigmaMin"`
	SigmaFallback float64 `yaml:"sigma_fallback" json:"sigma_fallback" default:"1.0" validate:"gtefield=SigmaMin,ltefield=SigmaMax"`
	// SigmaFloor is the smallest sigma used as a z-score denominator; below it z is 0.
	SigmaFloor float64 `yaml:"sigma_floor" json:"sigma_floor" default:"0.000001" validate:"gt=0"`

	CapitalFraction float64 `yaml:"capital_fraction" json:"capital_fraction" default:"0.5" validate:"gt=0,lte=1"`

	// RequireMeanReversion blocks entries while the OU slope is non-negative.
	RequireMeanReversion bool `yaml:"require_mean_reversion" json:"require_mean_reversion"`
}

var validate = validator.New()

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("spread: bad default tags: %v", err))
	}
	return c
}

// Validate checks ranges and cross-field ordering of the bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("spread config: %w", err)
	}
	return nil
}
