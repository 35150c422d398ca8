package monitor

import "time"

// ComponentStatus is the latest probe result for one dependency.
type ComponentStatus struct {
	Online   bool          `json:"online"`
	Required bool          `json:"required"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

type Status struct {
	Components map[string]ComponentStatus `json:"components"`
	LastCheck  time.Time                  `json:"last_check"`
}

// Healthy reports whether every required component answered the last probe.
func (s Status) Healthy() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, c := range s.Components {
		if c.Required && !c.Online {
			return false
		}
	}
	return true
}
