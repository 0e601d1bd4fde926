package domain

// Plan is the user's subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Unlimited marks a plan limit with no cap.
const Unlimited = -1

// PlanLimits are the caps derived from a plan tier. Each is either a
// non-negative count or Unlimited.
type PlanLimits struct {
	MaxLinks       int
	MaxTags        int
	MaxLinksPerDay int
}
