package auction

import "time"

// ExtensionPolicy is the anti-sniping rule: a bid accepted within Window of the
// deadline pushes the deadline back by Extension. MaxExtensions caps how often
// that can happen per auction; zero means no cap.
type ExtensionPolicy struct {
	Window        time.Duration
	Extension     time.Duration
	MaxExtensions int
}

func DefaultExtensionPolicy() ExtensionPolicy {
	return ExtensionPolicy{
		Window:    10 * time.Second,
		Extension: 30 * time.Second,
	}
}

// Apply returns the deadline after a bid accepted at now, and whether it moved.
// applied is the number of extensions already granted.
func (p ExtensionPolicy) Apply(now, endsAt time.Time, applied int) (time.Time, bool) {
	if p.Window <= 0 || p.Extension <= 0 {
		return endsAt, false
	}
	if !now.Before(endsAt) || endsAt.Sub(now) > p.Window {
		return endsAt, false
	}
	if p.MaxExtensions > 0 && applied >= p.MaxExtensions {
		return endsAt, false
	}
	return endsAt.Add(p.Extension), true
}
