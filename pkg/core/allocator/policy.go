package allocator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned for a policy name that is not one of the known policies
var ErrInvalidPolicy = errors.New("invalid allocation policy")

// Policy selects how candidates are ordered before the roster / waitlist / rejected partition
type Policy string

const (
	// PolicyPriority orders by priority, then submission time. It ignores gender.
	PolicyPriority Policy = "priority"

	// PolicyGenderTiered balances gender within each priority tier, so a lower-priority
	// candidate never overtakes a higher-priority one.
	PolicyGenderTiered Policy = "gender-tiered"

	// PolicyGenderGlobal balances gender across the whole list, letting the balancer move
	// candidates ahead of higher-priority candidates of the other gender.
	PolicyGenderGlobal Policy = "gender-global"

	// PolicyManual labels handpicked decisions in results and metrics. It cannot be passed to
	// Allocate.
	PolicyManual Policy = "manual"
)

// Policies lists every supported policy in display order
var Policies = []Policy{PolicyPriority, PolicyGenderTiered, PolicyGenderGlobal}

// ParsePolicy parses a policy name. An empty name is PolicyPriority.
// The single letters A, B and C are accepted as aliases.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", string(PolicyPriority):
		return PolicyPriority, nil
	case "b", string(PolicyGenderTiered):
		return PolicyGenderTiered, nil
	case "c", string(PolicyGenderGlobal):
		return PolicyGenderGlobal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

func (p Policy) IsValid() bool {
	return p == PolicyPriority || p == PolicyGenderTiered || p == PolicyGenderGlobal
}

// UsesGender reports whether the policy needs applicant genders resolved before it runs
func (p Policy) UsesGender() bool {
	return p == PolicyGenderTiered || p == PolicyGenderGlobal
}
