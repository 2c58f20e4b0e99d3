package domain

import (
	"fmt"
	"strings"
)

// AudienceProfile selects one of the scoring configurations.
type AudienceProfile int

const (
	ProfileInfant AudienceProfile = iota
	ProfileChild
	ProfileFamily
)

// Profiles lists every audience profile in scoring order.
var Profiles = []AudienceProfile{ProfileInfant, ProfileChild, ProfileFamily}

func (p AudienceProfile) String() string {
	switch p {
	case ProfileInfant:
		return "infant"
	case ProfileChild:
		return "child"
	case ProfileFamily:
		return "family"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// TargetAge returns the representative age in years for the profile.
// Family has no single target age.
func (p AudienceProfile) TargetAge() (int, bool) {
	switch p {
	case ProfileInfant:
		return 2, true
	case ProfileChild:
		return 8, true
	default:
		return 0, false
	}
}

// ParseProfile converts a profile name into an AudienceProfile.
func ParseProfile(s string) (AudienceProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "infant":
		return ProfileInfant, nil
	case "child":
		return ProfileChild, nil
	case "family":
		return ProfileFamily, nil
	default:
		return 0, fmt.Errorf("unknown audience profile %q", s)
	}
}
