// Package domain defines core data structures used throughout the trading bot.
package domain

// Mode selects between simulated and live accounting.
type Mode string

const (
	// ModePaper simulated accounting against the local store.
	ModePaper Mode = "paper"
	// ModeLive mirrored accounting from a live broker.
	ModeLive Mode = "live"
)

// String returns the string representation.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the Mode value is valid.
func (m Mode) IsValid() bool {
	return m == ModePaper || m == ModeLive
}

// Profile controls which strategy jobs are scheduled.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileBalanced     Profile = "balanced"
	// ProfileEnhanced additionally schedules spreads and condors.
	ProfileEnhanced Profile = "enhanced"
)

// String returns the string representation.
func (p Profile) String() string {
	return string(p)
}

// IsValid checks if the Profile value is valid.
func (p Profile) IsValid() bool {
	switch p {
	case ProfileConservative, ProfileBalanced, ProfileEnhanced:
		return true
	}
	return false
}
