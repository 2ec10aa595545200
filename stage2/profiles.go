package stage2

import "fmt"

// Profile is one second-stage training recipe. Two shipped: "legacy", the
// first tuned settings, and "regularized", which trades tree capacity for
// shrinkage and leaf regularization. The sweep picks between them per run.
type Profile struct {
	Name      string  `json:"name"`
	Rounds    int     `json:"rounds"`
	Depth     int     `json:"depth"`
	LearnRate float64 `json:"learn_rate"`
	MinLeaf   int     `json:"min_leaf"`
	L2        float64 `json:"l2"`
}

const (
	ProfileLegacy      = "legacy"
	ProfileRegularized = "regularized"
)

func LegacyProfile() Profile {
	return Profile{
		Name:      ProfileLegacy,
		Rounds:    200,
		Depth:     3,
		LearnRate: 0.1,
		MinLeaf:   2,
		L2:        0,
	}
}

func RegularizedProfile() Profile {
	return Profile{
		Name:      ProfileRegularized,
		Rounds:    300,
		Depth:     2,
		LearnRate: 0.05,
		MinLeaf:   8,
		L2:        1,
	}
}

// ProfileByName resolves a profile name from configuration.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case ProfileLegacy:
		return LegacyProfile(), nil
	case ProfileRegularized:
		return RegularizedProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown stage2 profile: %q", name)
	}
}
