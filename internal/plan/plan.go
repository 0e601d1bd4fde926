// Package plan holds the quota policy: pure decision functions over a user's
// plan tier and current counts. Nothing here performs I/O or enforces
// anything; callers decide what a failed check means.
package plan

import "linkmind/internal/domain"

var limitsByPlan = map[domain.Plan]domain.PlanLimits{
	domain.PlanFree: {
		MaxLinks:       100,
		MaxTags:        25,
		MaxLinksPerDay: 20,
	},
	domain.PlanPro: {
		MaxLinks:       domain.Unlimited,
		MaxTags:        domain.Unlimited,
		MaxLinksPerDay: domain.Unlimited,
	},
}

// LimitsFor returns the caps for a plan tier. Unknown tiers get the free
// tier's limits.
func LimitsFor(p domain.Plan) domain.PlanLimits {
	if l, ok := limitsByPlan[p]; ok {
		return l
	}
	return limitsByPlan[domain.PlanFree]
}

// CanCreateLink reports whether the user may save another link.
func CanCreateLink(p domain.Plan, currentLinkCount int) bool {
	return withinLimit(LimitsFor(p).MaxLinks, currentLinkCount)
}

// CanCreateLinkToday reports whether the user may save another link today.
func CanCreateLinkToday(p domain.Plan, todayCount int) bool {
	return withinLimit(LimitsFor(p).MaxLinksPerDay, todayCount)
}

// CanCreateTag reports whether the user may add another tag to their
// vocabulary.
func CanCreateTag(p domain.Plan, currentTagCount int) bool {
	return withinLimit(LimitsFor(p).MaxTags, currentTagCount)
}

// RemainingTagSlots returns how many tags the user may still create, or
// domain.Unlimited when the plan has no tag cap. Never negative.
func RemainingTagSlots(p domain.Plan, currentTagCount int) int {
	max := LimitsFor(p).MaxTags
	if max == domain.Unlimited {
		return domain.Unlimited
	}
	if remaining := max - currentTagCount; remaining > 0 {
		return remaining
	}
	return 0
}

func withinLimit(max, current int) bool {
	return max == domain.Unlimited || current < max
}
