// Package capability probes which optional tiers are usable in the current
// process. Detection runs exactly once; the resulting set is immutable and
// safe for unsynchronized concurrent reads.
package capability

// Capability records the availability of one optional tier. When a probe
// fails the reason is preserved for observability, but callers branch only
// on Available.
type Capability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Version   string `json:"version,omitempty"`
}

// State renders the capability the way the status surface reports it.
func (c Capability) State() string {
	if c.Available {
		return "ENABLED"
	}
	return "DISABLED"
}

// Set is the immutable record of detected capabilities. It is created once
// at startup and never mutated afterward; re-detection requires a process
// restart.
type Set struct {
	HTTP2       Capability `json:"http2"`
	JSRendering Capability `json:"js_rendering"`
}
