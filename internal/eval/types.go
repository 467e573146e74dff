package eval

// #region eval-config
// EvalConfig holds thresholds for post-commit validation.
type EvalConfig struct {
	MaxResonancePatterns int     // resonance history bound
	MaxEvolutionHistory  int     // snapshot history bound
	MinHealthyCoherence  float64 // informational: coherence below this is flagged, not failed
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxResonancePatterns: 100,
		MaxEvolutionHistory:  100,
		MinHealthyCoherence:  0.2,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
