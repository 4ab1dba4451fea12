package prayer

// Preferences maps each event to whether alarms are wanted for it.
// A missing entry means enabled.
type Preferences map[EventName]bool

// DefaultPreferences returns preferences with every event enabled
func DefaultPreferences() Preferences {
	p := make(Preferences, NumEvents)
	for _, e := range Events {
		p[e] = true
	}
	return p
}

// Enabled reports whether alarms are wanted for name
func (p Preferences) Enabled(name EventName) bool {
	enabled, ok := p[name]
	if !ok {
		return true
	}
	return enabled
}

// AnyEnabled reports whether at least one event is enabled
func (p Preferences) AnyEnabled() bool {
	for _, e := range Events {
		if p.Enabled(e) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy with every event explicitly set
func (p Preferences) Clone() Preferences {
	out := make(Preferences, NumEvents)
	for _, e := range Events {
		out[e] = p.Enabled(e)
	}
	return out
}
