package quantum

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// #region field-config
// FieldConfig holds the quantum field parameters.
type FieldConfig struct {
	MaxResonanceHistory    int           // bounded resonance ring (default 100)
	StabilityCheckInterval time.Duration // min spacing between Observe refreshes (default 1s)
	CoherenceRetention     float64       // per-second coherence retention while idle (default 0.998)
	EntanglementJitter     float64       // amplitude of entanglement jitter (default 0.05)
	Layers                 int           // dimensional layers (default 4)
	GatewayTimeout         time.Duration // per gateway call (default 2s)
}

// DefaultFieldConfig returns sensible defaults.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		MaxResonanceHistory:    100,
		StabilityCheckInterval: time.Second,
		CoherenceRetention:     0.998,
		EntanglementJitter:     0.05,
		Layers:                 4,
		GatewayTimeout:         2 * time.Second,
	}
}

// #endregion field-config

// #region field
// Field owns one entity's QuantumState and its dimensional model. Like the
// model it is driven by a single owner and is not safe for concurrent use.
type Field struct {
	entityID  string
	config    FieldConfig
	dim       *DimensionalModel
	state     QuantumState
	gateway   Gateway
	rand      Rand
	clock     clock.Clock
	log       zerolog.Logger
	lastCheck time.Time
}

// FieldOptions carries optional collaborators. A nil Gateway keeps the field local.
type FieldOptions struct {
	Gateway Gateway
	Rand    Rand
	Clock   clock.Clock
	Logger  *zerolog.Logger
}

// NewField creates a locally initialised field for entityID.
func NewField(entityID string, config FieldConfig, dimConfig DimensionalConfig, opts FieldOptions) *Field {
	if config.MaxResonanceHistory <= 0 {
		config.MaxResonanceHistory = DefaultFieldConfig().MaxResonanceHistory
	}
	if config.Layers <= 0 {
		config.Layers = DefaultFieldConfig().Layers
	}
	clk := clock.Or(opts.Clock)
	rnd := opts.Rand
	if rnd == nil {
		rnd = NewRand()
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = opts.Logger.With().Str("component", "quantum").Str("entity", entityID).Logger()
	}

	now := clk.Now()
	f := &Field{
		entityID: entityID,
		config:   config,
		dim:      NewDimensionalModel(dimConfig, clk, FreshDimensionalState(now)),
		gateway:  opts.Gateway,
		rand:     rnd,
		clock:    clk,
		log:      lg,
	}
	f.state = QuantumState{
		AmplitudeRe:       1,
		CoherenceLevel:    0.5,
		EntanglementIndex: 0.3,
		DimensionalSync:   0.5,
		Signature:         uuid.New().String(),
		LastUpdate:        now,
		EvolutionFactor:   0.5,
		TemporalStability: 0.5,
		Layers:            freshLayers(config.Layers),
	}
	return f
}

func freshLayers(n int) []Layer {
	layers := make([]Layer, n)
	for i := range layers {
		layers[i] = Layer{Index: i, Resonance: 1, Stability: 1, Coherence: 1}
	}
	return layers
}

// #endregion field

// #region initialize
// Initialize asks the gateway for the initial coherence and signature and
// seeds the first resonance pattern. Without a gateway, or when the gateway
// fails, the field keeps its local initialisation; the failure is returned
// wrapped in ErrTransientExternal for the caller to report.
func (f *Field) Initialize(ctx context.Context) error {
	var gwErr error
	init := FieldInit{Coherence: f.state.CoherenceLevel, Signature: f.state.Signature}
	if f.gateway != nil {
		callCtx, cancel := f.callContext(ctx)
		res, err := f.gateway.InitializeField(callCtx, f.entityID)
		cancel()
		if err != nil {
			gwErr = errtrack.E(errtrack.ErrTransientExternal, "initialize field", err)
			f.log.Warn().Err(err).Msg("gateway initialisation failed, using local field")
		} else {
			init = res
		}
	}

	// gateway result is awaited before any mutation is committed
	pattern := f.localPattern()
	f.state.CoherenceLevel = clamp(init.Coherence)
	if init.Signature != "" {
		f.state.Signature = init.Signature
	}
	f.state.ResonancePatterns = []ResonancePattern{pattern}

	s := f.dim.State()
	s.Frequency = pattern.Frequency
	s.Resonance = pattern.Coherence
	s.DimensionalFrequency = pattern.Frequency
	f.dim.Restore(s)

	f.state.DimensionalSync = f.state.EntanglementIndex
	f.state.LastUpdate = f.clock.Now()
	f.refreshDimensional()
	return gwErr
}

// #endregion initialize

// #region interaction
// ApplyInteraction restores the field in proportion to strength in [0, 1].
func (f *Field) ApplyInteraction(strength float64) {
	f.Decay()
	strength = clamp(strength)
	f.dim.UpdateStability(strength)

	resonance := f.dim.CalculateResonance()
	jitter := (f.rand.Float64()*2 - 1) * f.config.EntanglementJitter

	f.state.CoherenceLevel = clamp(f.state.CoherenceLevel + (resonance-f.state.CoherenceLevel)*0.3*strength + 0.05*strength)
	f.state.EntanglementIndex = clamp(f.state.EntanglementIndex*0.8 + strength*0.2 + jitter)
	f.state.EvolutionFactor = clamp(f.state.EvolutionFactor + strength*0.02)
	f.state.Phase = math.Mod(f.state.Phase+strength*math.Pi, 2*math.Pi)
	f.state.SetAmplitude(f.state.Amplitude() * complex(1+0.05*strength, 0))
	f.normaliseAmplitude()

	for i := range f.state.Layers {
		l := &f.state.Layers[i]
		weight := 1 - 0.15*float64(i)
		l.Resonance = clamp(l.Resonance + strength*0.1*weight)
		l.Stability = clamp(l.Stability + strength*0.05*weight)
		l.Coherence = clamp(l.Resonance * l.Stability)
	}
	f.state.LastUpdate = f.clock.Now()
	f.refreshDimensional()
}

// #endregion interaction

// #region observe
// Observe refreshes the field at most once per StabilityCheckInterval: it asks
// the gateway for a stability verdict and generated patterns, appends a new
// resonance pattern and recomputes coherence and temporal stability. A gateway
// failure falls back to a locally generated pattern and is returned wrapped in
// ErrTransientExternal.
func (f *Field) Observe(ctx context.Context) (Status, error) {
	f.Decay()
	now := f.clock.Now()
	if !f.lastCheck.IsZero() && now.Sub(f.lastCheck) < f.config.StabilityCheckInterval {
		return f.dim.QuantumStatus(), nil
	}
	f.lastCheck = now

	var gwErr error
	pattern := f.localPattern()
	if f.gateway != nil {
		callCtx, cancel := f.callContext(ctx)
		stable, err := f.gateway.CheckStability(callCtx, f.entityID)
		if err == nil {
			var gen GeneratedPatterns
			gen, err = f.gateway.GeneratePatterns(callCtx, f.entityID)
			if err == nil {
				pattern = f.gatewayPattern(gen, stable)
			}
		}
		cancel()
		if err != nil {
			gwErr = errtrack.E(errtrack.ErrTransientExternal, "observe field", err)
			f.log.Warn().Err(err).Msg("gateway observation failed, using local pattern")
		}
	}

	f.appendPattern(pattern)
	f.state.CoherenceLevel = clamp((f.state.CoherenceLevel + pattern.Coherence) / 2)
	f.state.TemporalStability = f.temporalStability()
	f.state.LastUpdate = now
	f.refreshDimensional()
	return f.dim.QuantumStatus(), gwErr
}

func (f *Field) appendPattern(p ResonancePattern) {
	f.state.ResonancePatterns = append(f.state.ResonancePatterns, p)
	if over := len(f.state.ResonancePatterns) - f.config.MaxResonanceHistory; over > 0 {
		f.state.ResonancePatterns = append([]ResonancePattern(nil), f.state.ResonancePatterns[over:]...)
	}
}

// #endregion observe

// #region decay
// Decay applies idle coherence and layer decay since the last update. It is
// lazy and idempotent for a fixed clock reading.
func (f *Field) Decay() {
	now := f.clock.Now()
	elapsed := now.Sub(f.state.LastUpdate)
	if elapsed <= 0 {
		return
	}
	seconds := elapsed.Seconds()
	retention := math.Pow(f.config.CoherenceRetention, seconds)
	layerRetention := math.Exp(-seconds * 0.01)

	f.state.CoherenceLevel = clamp(f.state.CoherenceLevel * retention)
	f.state.EvolutionFactor = clamp(f.state.EvolutionFactor * retention)
	for i := range f.state.Layers {
		l := &f.state.Layers[i]
		l.Resonance = clamp(l.Resonance * layerRetention)
		l.Stability = clamp(l.Stability - seconds*0.001)
		l.Coherence = clamp(l.Resonance * l.Stability)
	}
	f.state.LastUpdate = now
	f.refreshDimensional()
}

// #endregion decay

// #region reinitialize
// Reinitialize is the QUANTUM recovery action: emergency dimensional recovery,
// a reset to the recovery target, coherence floored, then a gateway
// re-initialisation attempt. Afterwards Status is no longer critical.
func (f *Field) Reinitialize(ctx context.Context) error {
	acted := f.dim.EmergencyRecovery()
	f.dim.Reset()
	target := f.dim.RecoveryTarget()
	f.state.CoherenceLevel = math.Max(f.state.CoherenceLevel, 0.3)
	for i := range f.state.Layers {
		l := &f.state.Layers[i]
		l.Resonance = math.Max(l.Resonance, target)
		l.Stability = math.Max(l.Stability, target)
		l.Coherence = clamp(l.Resonance * l.Stability)
	}
	f.refreshDimensional()
	f.log.Warn().Bool("emergency_recovery", acted).Str("status", string(f.dim.QuantumStatus())).Msg("reinitialising quantum field")

	if f.gateway == nil {
		return nil
	}
	callCtx, cancel := f.callContext(ctx)
	defer cancel()
	res, err := f.gateway.InitializeField(callCtx, f.entityID)
	if err != nil {
		return errtrack.E(errtrack.ErrTransientExternal, "reinitialize field", err)
	}
	f.state.CoherenceLevel = math.Max(f.state.CoherenceLevel, clamp(res.Coherence))
	if res.Signature != "" {
		f.state.Signature = res.Signature
	}
	return nil
}

// #endregion reinitialize

// #region accessors
// EntityID returns the owning entity id.
func (f *Field) EntityID() string { return f.entityID }

// Status returns the dimensional quantum status.
func (f *Field) Status() Status {
	return f.dim.QuantumStatus()
}

// Dimensional exposes the dimensional model.
func (f *Field) Dimensional() *DimensionalModel { return f.dim }

// Snapshot returns a deep copy of the current quantum state.
func (f *Field) Snapshot() QuantumState {
	f.refreshDimensional()
	return f.state.Clone()
}

// Restore replaces the field's state from a persisted snapshot.
func (f *Field) Restore(s QuantumState) {
	f.state = s.Clone()
	if len(f.state.Layers) == 0 {
		f.state.Layers = freshLayers(f.config.Layers)
	}
	if over := len(f.state.ResonancePatterns) - f.config.MaxResonanceHistory; over > 0 {
		f.state.ResonancePatterns = f.state.ResonancePatterns[over:]
	}
	f.dim.Restore(s.Dimensional)
}

// ResonantPatterns returns the stored patterns that still resonate.
func (f *Field) ResonantPatterns() []ResonancePattern {
	var out []ResonancePattern
	for _, p := range f.state.ResonancePatterns {
		if f.dim.CheckPatternResonance(p) {
			out = append(out, p)
		}
	}
	return out
}

// PatternComplexity scores diversity and movement of the resonance history in [0, 1].
func (f *Field) PatternComplexity() float64 {
	patterns := f.state.ResonancePatterns
	if len(patterns) < 2 {
		return 0.1
	}
	unique := make(map[string]struct{}, len(patterns))
	var movement float64
	for i, p := range patterns {
		unique[fmt.Sprintf("%.2f-%.2f-%.2f", p.Frequency, p.Amplitude, p.Phase)] = struct{}{}
		if i > 0 {
			movement += math.Abs(p.Coherence - patterns[i-1].Coherence)
		}
	}
	complexity := float64(len(unique))/float64(len(patterns))*0.5 +
		movement/float64(len(patterns)-1)*0.5
	return clamp(complexity)
}

// #endregion accessors

// #region helpers
func (f *Field) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.config.GatewayTimeout > 0 {
		return context.WithTimeout(ctx, f.config.GatewayTimeout)
	}
	return context.WithCancel(ctx)
}

func (f *Field) localPattern() ResonancePattern {
	freq := 0.4 + f.rand.Float64()*0.2
	coh := 0.5 + f.rand.Float64()*0.3
	return ResonancePattern{
		ID:             uuid.New().String(),
		Coherence:      coh,
		Frequency:      freq,
		Amplitude:      0.3 + f.rand.Float64()*0.4,
		Phase:          f.rand.Float64() * 2 * math.Pi,
		Timestamp:      f.clock.Now(),
		StabilityIndex: coh * 0.8,
		EntropyLevel:   0.3 + f.rand.Float64()*0.2,
	}
}

func (f *Field) gatewayPattern(gen GeneratedPatterns, stable bool) ResonancePattern {
	p := f.localPattern()
	p.Coherence = clamp(gen.Pattern)
	p.Amplitude = clamp(gen.Awareness)
	p.StabilityIndex = clamp(gen.Understanding * 0.8)
	if !stable {
		p.StabilityIndex *= 0.5
		p.EntropyLevel = clamp(p.EntropyLevel + 0.2)
	}
	return p
}

// temporalStability compares consecutive patterns in the last five.
func (f *Field) temporalStability() float64 {
	patterns := f.state.ResonancePatterns
	if len(patterns) < 2 {
		return 0.5
	}
	if len(patterns) > 5 {
		patterns = patterns[len(patterns)-5:]
	}
	var sum float64
	for i := 1; i < len(patterns); i++ {
		dc := math.Abs(patterns[i].Coherence - patterns[i-1].Coherence)
		df := math.Abs(patterns[i].Frequency - patterns[i-1].Frequency)
		sum += 1 - (dc+df)/2
	}
	return clamp(sum / float64(len(patterns)-1))
}

// refreshDimensional copies the model's state into the snapshot and derives sync.
func (f *Field) refreshDimensional() {
	f.state.Dimensional = f.dim.State()
	f.state.DimensionalSync = clamp(f.state.Dimensional.SyncLevel*0.5 + f.state.MeanLayerResonance()*0.5)
}

func (f *Field) normaliseAmplitude() {
	a := f.state.Amplitude()
	mag := math.Hypot(real(a), imag(a))
	if mag > 1 {
		f.state.SetAmplitude(a / complex(mag, 0))
	}
}

// #endregion helpers
