package plans

import "strings"

type Plan string

const (
	PlanBasic Plan = "basic"
	PlanVIP   Plan = "vip"
)

// Monthly list prices used when no payment amount is known yet.
const (
	defaultAmountBasic = 39.9
	defaultAmountVIP   = 99.9
)

// Normalize maps an arbitrary plan string to a known plan, defaulting to
// basic.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanVIP):
		return PlanVIP
	default:
		return PlanBasic
	}
}

// DefaultAmount returns the assumed monthly amount for a plan.
func DefaultAmount(plan Plan) float64 {
	if plan == PlanVIP {
		return defaultAmountVIP
	}
	return defaultAmountBasic
}

// Features returns which site features a plan unlocks.
func Features(plan Plan) (customDomain, analytics, prioritySupport bool) {
	switch plan {
	case PlanVIP:
		return true, true, true
	default:
		return true, false, false
	}
}
