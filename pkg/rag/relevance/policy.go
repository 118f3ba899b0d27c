package relevance

// AcceptancePolicy decides how a candidate earns its place in the
// context block: by vector distance alone, by model verdict alone, or
// by a hybrid where a strict distance pass skips the verdict call.
type AcceptancePolicy interface {
	// NeedsVerdict reports whether the candidate at this distance must
	// be judged by the model before Accept can be called.
	NeedsVerdict(distance float64) bool

	// Accept decides inclusion. verdict is nil when NeedsVerdict
	// returned false or the verdict call failed.
	Accept(distance float64, verdict *Verdict) bool
}

// ThresholdPolicy accepts purely on vector distance. No model calls.
type ThresholdPolicy struct {
	Threshold float64
}

func (p ThresholdPolicy) NeedsVerdict(float64) bool { return false }

func (p ThresholdPolicy) Accept(distance float64, _ *Verdict) bool {
	return distance <= p.Threshold
}

// VerdictPolicy judges every candidate with the model regardless of
// distance.
type VerdictPolicy struct{}

func (VerdictPolicy) NeedsVerdict(float64) bool { return true }

func (VerdictPolicy) Accept(_ float64, verdict *Verdict) bool {
	return verdict != nil && verdict.Relevant
}

// HybridPolicy lets candidates under a strict threshold through without
// a verdict and judges the rest. This is the default: the cheap pass
// keeps obvious hits out of the model queue.
type HybridPolicy struct {
	Threshold float64
}

func (p HybridPolicy) NeedsVerdict(distance float64) bool {
	return distance > p.Threshold
}

func (p HybridPolicy) Accept(distance float64, verdict *Verdict) bool {
	if distance <= p.Threshold {
		return true
	}
	return verdict != nil && verdict.Relevant
}

// PolicyFromName maps a config value to a policy, defaulting to hybrid.
func PolicyFromName(name string, threshold float64) AcceptancePolicy {
	switch name {
	case "threshold":
		return ThresholdPolicy{Threshold: threshold}
	case "llm":
		return VerdictPolicy{}
	default:
		return HybridPolicy{Threshold: threshold}
	}
}
