// Package config loads the operator-facing configuration from YAML and
// ANIMA_* environment variables and maps it onto the component configs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/codec"
	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ANIMA_GATE_MAX_DELTA.
const EnvPrefix = "ANIMA"

// #region sections
// Config is the complete configuration.
type Config struct {
	Engine      EngineSection      `mapstructure:"engine"`
	Dimensional DimensionalSection `mapstructure:"dimensional"`
	Field       FieldSection       `mapstructure:"field"`
	Pattern     PatternSection     `mapstructure:"pattern"`
	Awareness   AwarenessSection   `mapstructure:"awareness"`
	Emotion     EmotionSection     `mapstructure:"emotion"`
	Evolution   EvolutionSection   `mapstructure:"evolution"`
	Core        CoreSection        `mapstructure:"core"`
	Gate        GateSection        `mapstructure:"gate"`
	Recovery    RecoverySection    `mapstructure:"recovery"`
	Gateway     GatewaySection     `mapstructure:"gateway"`
	Store       StoreSection       `mapstructure:"store"`
	Logging     LoggingSection     `mapstructure:"logging"`
	Metrics     MetricsSection     `mapstructure:"metrics"`
}

type EngineSection struct {
	Seed         uint64        `mapstructure:"seed"`
	Persist      bool          `mapstructure:"persist"`
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"gte=0"`
}

type DimensionalSection struct {
	BaseRate             float64       `mapstructure:"base_rate" validate:"gt=0,lte=1"`
	DegradationThreshold time.Duration `mapstructure:"degradation_threshold" validate:"gte=0"`
	MaxEntropyIncrease   float64       `mapstructure:"max_entropy_increase" validate:"gte=0,lte=1"`
	ResonanceThreshold   float64       `mapstructure:"resonance_threshold" validate:"gte=0,lte=1"`
	FrequencyTolerance   float64       `mapstructure:"frequency_tolerance" validate:"gte=0,lte=1"`
	RecoveryFloor        float64       `mapstructure:"recovery_floor" validate:"gte=0,lte=1"`
	RecoveryEntropyCap   float64       `mapstructure:"recovery_entropy_cap" validate:"gte=0,lte=1"`
	RecoveryTarget       float64       `mapstructure:"recovery_target" validate:"gt=0.55,lte=1"`
}

type FieldSection struct {
	Layers                 int           `mapstructure:"layers" validate:"gte=1,lte=16"`
	MaxResonanceHistory    int           `mapstructure:"max_resonance_history" validate:"gte=1"`
	StabilityCheckInterval time.Duration `mapstructure:"stability_check_interval" validate:"gte=0"`
	CoherenceRetention     float64       `mapstructure:"coherence_retention" validate:"gt=0,lte=1"`
}

type PatternSection struct {
	Capacity            int           `mapstructure:"capacity" validate:"gte=1"`
	TTL                 time.Duration `mapstructure:"ttl" validate:"gt=0"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	ReinforcementStep   float64       `mapstructure:"reinforcement_step" validate:"gte=0,lte=1"`
}

type AwarenessSection struct {
	WindowSize      int           `mapstructure:"window_size" validate:"gte=1"`
	Smoothing       float64       `mapstructure:"smoothing" validate:"gt=0,lte=1"`
	OptimalInterval time.Duration `mapstructure:"optimal_interval" validate:"gt=0"`
}

type EmotionSection struct {
	HistorySize int `mapstructure:"history_size" validate:"gte=1"`
	TrendWindow int `mapstructure:"trend_window" validate:"gte=1"`
}

type EvolutionSection struct {
	Hysteresis  int     `mapstructure:"hysteresis" validate:"gte=1"`
	HistorySize int     `mapstructure:"history_size" validate:"gte=1"`
	BaseRate    float64 `mapstructure:"base_rate" validate:"gt=0,lte=1"`
	MaxDelta    float64 `mapstructure:"max_delta" validate:"gt=0,lte=1"`
}

type CoreSection struct {
	HistorySize     int `mapstructure:"history_size" validate:"gte=1"`
	StabilityWindow int `mapstructure:"stability_window" validate:"gte=2"`
}

type GateSection struct {
	MaxDelta     float64 `mapstructure:"max_delta" validate:"gt=0,lte=1"`
	Epsilon      float64 `mapstructure:"epsilon" validate:"gte=0"`
	MaxDeltaNorm float64 `mapstructure:"max_delta_norm" validate:"gt=0"`
}

type RecoverySection struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	Cooldown    time.Duration `mapstructure:"cooldown" validate:"gt=0"`
	LogCapacity int           `mapstructure:"log_capacity" validate:"gte=1"`
}

// GatewaySection configures the remote quantum field service. An empty
// address keeps every entity on its local field.
type GatewaySection struct {
	Address          string        `mapstructure:"address"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" validate:"gt=0"`
	FailureThreshold float64       `mapstructure:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `mapstructure:"min_requests" validate:"gte=1"`
}

// StoreSection configures persistence. An empty path disables it.
type StoreSection struct {
	Path string `mapstructure:"path"`
}

type LoggingSection struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

type MetricsSection struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// #endregion sections

// #region defaults
// Default mirrors the components' own defaults.
func Default() Config {
	ec := engine.DefaultConfig()
	cc := codec.DefaultClientConfig()
	lc := logging.DefaultLoggingConfig()
	return Config{
		Engine: EngineSection{Persist: ec.Persist, TickInterval: time.Second},
		Dimensional: DimensionalSection{
			BaseRate:             ec.Dimensional.BaseRate,
			DegradationThreshold: ec.Dimensional.DegradationThreshold,
			MaxEntropyIncrease:   ec.Dimensional.MaxEntropyIncrease,
			ResonanceThreshold:   ec.Dimensional.ResonanceThreshold,
			FrequencyTolerance:   ec.Dimensional.FrequencyTolerance,
			RecoveryFloor:        ec.Dimensional.RecoveryFloor,
			RecoveryEntropyCap:   ec.Dimensional.RecoveryEntropyCap,
			RecoveryTarget:       ec.Dimensional.RecoveryTarget,
		},
		Field: FieldSection{
			Layers:                 ec.Field.Layers,
			MaxResonanceHistory:    ec.Field.MaxResonanceHistory,
			StabilityCheckInterval: ec.Field.StabilityCheckInterval,
			CoherenceRetention:     ec.Field.CoherenceRetention,
		},
		Pattern: PatternSection{
			Capacity:            ec.Pattern.Capacity,
			TTL:                 ec.Pattern.TTL,
			ConfidenceThreshold: ec.Pattern.ConfidenceThreshold,
			ReinforcementStep:   ec.Pattern.ReinforcementStep,
		},
		Awareness: AwarenessSection{
			WindowSize:      ec.Awareness.WindowSize,
			Smoothing:       ec.Awareness.Smoothing,
			OptimalInterval: ec.Awareness.OptimalInterval,
		},
		Emotion: EmotionSection{
			HistorySize: ec.Emotion.HistorySize,
			TrendWindow: ec.Emotion.TrendWindow,
		},
		Evolution: EvolutionSection{
			Hysteresis:  ec.Evolution.Hysteresis,
			HistorySize: ec.Evolution.HistorySize,
			BaseRate:    ec.Evolution.Step.BaseRate,
			MaxDelta:    ec.Evolution.Step.MaxDelta,
		},
		Core: CoreSection{
			HistorySize:     ec.Core.HistorySize,
			StabilityWindow: ec.Core.StabilityWindow,
		},
		Gate: GateSection{
			MaxDelta:     ec.Gate.MaxDelta,
			Epsilon:      ec.Gate.Epsilon,
			MaxDeltaNorm: ec.Gate.MaxDeltaNorm,
		},
		Recovery: RecoverySection{
			MaxAttempts: ec.Tracker.Recovery.MaxAttempts,
			Cooldown:    ec.Tracker.Recovery.Cooldown,
			LogCapacity: ec.Tracker.LogCapacity,
		},
		Gateway: GatewaySection{
			Timeout:          cc.Timeout,
			OpenTimeout:      cc.OpenTimeout,
			FailureThreshold: cc.FailureThreshold,
			MinRequests:      cc.MinRequests,
		},
		Logging: LoggingSection{Level: lc.Level, Pretty: lc.Pretty},
		Metrics: MetricsSection{Namespace: "anima"},
	}
}

// setDefaults registers every key with viper so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("engine.seed", d.Engine.Seed)
	v.SetDefault("engine.persist", d.Engine.Persist)
	v.SetDefault("engine.tick_interval", d.Engine.TickInterval)

	v.SetDefault("dimensional.base_rate", d.Dimensional.BaseRate)
	v.SetDefault("dimensional.degradation_threshold", d.Dimensional.DegradationThreshold)
	v.SetDefault("dimensional.max_entropy_increase", d.Dimensional.MaxEntropyIncrease)
	v.SetDefault("dimensional.resonance_threshold", d.Dimensional.ResonanceThreshold)
	v.SetDefault("dimensional.frequency_tolerance", d.Dimensional.FrequencyTolerance)
	v.SetDefault("dimensional.recovery_floor", d.Dimensional.RecoveryFloor)
	v.SetDefault("dimensional.recovery_entropy_cap", d.Dimensional.RecoveryEntropyCap)
	v.SetDefault("dimensional.recovery_target", d.Dimensional.RecoveryTarget)

	v.SetDefault("field.layers", d.Field.Layers)
	v.SetDefault("field.max_resonance_history", d.Field.MaxResonanceHistory)
	v.SetDefault("field.stability_check_interval", d.Field.StabilityCheckInterval)
	v.SetDefault("field.coherence_retention", d.Field.CoherenceRetention)

	v.SetDefault("pattern.capacity", d.Pattern.Capacity)
	v.SetDefault("pattern.ttl", d.Pattern.TTL)
	v.SetDefault("pattern.confidence_threshold", d.Pattern.ConfidenceThreshold)
	v.SetDefault("pattern.reinforcement_step", d.Pattern.ReinforcementStep)

	v.SetDefault("awareness.window_size", d.Awareness.WindowSize)
	v.SetDefault("awareness.smoothing", d.Awareness.Smoothing)
	v.SetDefault("awareness.optimal_interval", d.Awareness.OptimalInterval)

	v.SetDefault("emotion.history_size", d.Emotion.HistorySize)
	v.SetDefault("emotion.trend_window", d.Emotion.TrendWindow)

	v.SetDefault("evolution.hysteresis", d.Evolution.Hysteresis)
	v.SetDefault("evolution.history_size", d.Evolution.HistorySize)
	v.SetDefault("evolution.base_rate", d.Evolution.BaseRate)
	v.SetDefault("evolution.max_delta", d.Evolution.MaxDelta)

	v.SetDefault("core.history_size", d.Core.HistorySize)
	v.SetDefault("core.stability_window", d.Core.StabilityWindow)

	v.SetDefault("gate.max_delta", d.Gate.MaxDelta)
	v.SetDefault("gate.epsilon", d.Gate.Epsilon)
	v.SetDefault("gate.max_delta_norm", d.Gate.MaxDeltaNorm)

	v.SetDefault("recovery.max_attempts", d.Recovery.MaxAttempts)
	v.SetDefault("recovery.cooldown", d.Recovery.Cooldown)
	v.SetDefault("recovery.log_capacity", d.Recovery.LogCapacity)

	v.SetDefault("gateway.address", d.Gateway.Address)
	v.SetDefault("gateway.timeout", d.Gateway.Timeout)
	v.SetDefault("gateway.open_timeout", d.Gateway.OpenTimeout)
	v.SetDefault("gateway.failure_threshold", d.Gateway.FailureThreshold)
	v.SetDefault("gateway.min_requests", d.Gateway.MinRequests)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.pretty", d.Logging.Pretty)

	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// #endregion defaults

// #region load
// Load reads path (optional) over the defaults, applies ANIMA_* environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errtrack.E(errtrack.ErrValidation, "load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section's bounds.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errtrack.E(errtrack.ErrValidation, "validate config", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Config.Gate.MaxDelta -> gate.maxdelta
		name := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", name, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s", name, fe.Tag()))
		}
	}
	return errtrack.Validationf("validate config", "%s", strings.Join(msgs, "; "))
}

// #endregion load

// #region write
// WriteDefault writes the default configuration as YAML.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v)
	out, err := yaml.Marshal(durationsAsStrings(v.AllSettings()))
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// durationsAsStrings renders durations as "5s" rather than nanoseconds.
func durationsAsStrings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		switch tv := val.(type) {
		case map[string]any:
			out[k] = durationsAsStrings(tv)
		case time.Duration:
			out[k] = tv.String()
		default:
			out[k] = val
		}
	}
	return out
}

// #endregion write

// #region mapping
// ToEngineConfig overlays the configured values on the component defaults.
func (c Config) ToEngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.Seed = c.Engine.Seed
	ec.Persist = c.Engine.Persist

	ec.Dimensional.BaseRate = c.Dimensional.BaseRate
	ec.Dimensional.DegradationThreshold = c.Dimensional.DegradationThreshold
	ec.Dimensional.MaxEntropyIncrease = c.Dimensional.MaxEntropyIncrease
	ec.Dimensional.ResonanceThreshold = c.Dimensional.ResonanceThreshold
	ec.Dimensional.FrequencyTolerance = c.Dimensional.FrequencyTolerance
	ec.Dimensional.RecoveryFloor = c.Dimensional.RecoveryFloor
	ec.Dimensional.RecoveryEntropyCap = c.Dimensional.RecoveryEntropyCap
	ec.Dimensional.RecoveryTarget = c.Dimensional.RecoveryTarget

	ec.Field.Layers = c.Field.Layers
	ec.Field.MaxResonanceHistory = c.Field.MaxResonanceHistory
	ec.Field.StabilityCheckInterval = c.Field.StabilityCheckInterval
	ec.Field.CoherenceRetention = c.Field.CoherenceRetention
	ec.Field.GatewayTimeout = c.Gateway.Timeout

	ec.Pattern.Capacity = c.Pattern.Capacity
	ec.Pattern.TTL = c.Pattern.TTL
	ec.Pattern.ConfidenceThreshold = c.Pattern.ConfidenceThreshold
	ec.Pattern.ReinforcementStep = c.Pattern.ReinforcementStep

	ec.Awareness.WindowSize = c.Awareness.WindowSize
	ec.Awareness.Smoothing = c.Awareness.Smoothing
	ec.Awareness.OptimalInterval = c.Awareness.OptimalInterval

	ec.Emotion.HistorySize = c.Emotion.HistorySize
	ec.Emotion.TrendWindow = c.Emotion.TrendWindow

	ec.Evolution.Hysteresis = c.Evolution.Hysteresis
	ec.Evolution.HistorySize = c.Evolution.HistorySize
	ec.Evolution.Step.BaseRate = c.Evolution.BaseRate
	ec.Evolution.Step.MaxDelta = c.Evolution.MaxDelta

	ec.Core.HistorySize = c.Core.HistorySize
	ec.Core.StabilityWindow = c.Core.StabilityWindow

	ec.Gate.MaxDelta = c.Gate.MaxDelta
	ec.Gate.Epsilon = c.Gate.Epsilon
	ec.Gate.MaxDeltaNorm = c.Gate.MaxDeltaNorm

	ec.Tracker.LogCapacity = c.Recovery.LogCapacity
	ec.Tracker.Recovery.MaxAttempts = c.Recovery.MaxAttempts
	ec.Tracker.Recovery.Cooldown = c.Recovery.Cooldown
	return ec
}

// ToClientConfig maps the gateway section onto the gRPC client config.
func (c Config) ToClientConfig() codec.ClientConfig {
	cc := codec.DefaultClientConfig()
	cc.Timeout = c.Gateway.Timeout
	cc.OpenTimeout = c.Gateway.OpenTimeout
	cc.FailureThreshold = c.Gateway.FailureThreshold
	cc.MinRequests = c.Gateway.MinRequests
	return cc
}

// ToLoggingConfig maps the logging section.
func (c Config) ToLoggingConfig() logging.LoggingConfig {
	return logging.LoggingConfig{Level: c.Logging.Level, Pretty: c.Logging.Pretty}
}

// #endregion mapping
