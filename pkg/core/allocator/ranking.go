package allocator

import (
	"sort"
	"time"

	"github.com/jakechorley/autoroster/pkg/core/model"
)

// rankBefore is the policy A order: priority descending, then submission time ascending with
// missing timestamps last, then email ascending so the order is total.
func rankBefore(a, b model.Applicant) bool {
	pa, pb := a.PriorityValue(), b.PriorityValue()
	if pa != pb {
		return pa > pb
	}
	return submittedFirst(a, b)
}

// submittedFirst orders by submission time, then email
func submittedFirst(a, b model.Applicant) bool {
	if c := compareTimes(a.SubmittedAt, b.SubmittedAt); c != 0 {
		return c < 0
	}
	return a.Email < b.Email
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	}
	return 0
}

func sortByRank(people []model.Applicant) {
	sort.SliceStable(people, func(i, j int) bool {
		return rankBefore(people[i], people[j])
	})
}

func sortBySubmission(people []model.Applicant) {
	sort.SliceStable(people, func(i, j int) bool {
		return submittedFirst(people[i], people[j])
	})
}

// splitEboard separates pre-accepted eboard candidates (nil priority) from ranked candidates.
// Eboard candidates come back in submission order.
func splitEboard(candidates []model.Applicant) (eboard, ranked []model.Applicant) {
	for _, c := range candidates {
		if c.Priority == nil {
			eboard = append(eboard, c)
		} else {
			ranked = append(ranked, c)
		}
	}
	sortBySubmission(eboard)
	return eboard, ranked
}

// splitByGender returns female, male and unknown queues, preserving input order
func splitByGender(people []model.Applicant) (female, male, unknown []model.Applicant) {
	for _, p := range people {
		switch p.Gender {
		case model.GenderFemale:
			female = append(female, p)
		case model.GenderMale:
			male = append(male, p)
		default:
			unknown = append(unknown, p)
		}
	}
	return female, male, unknown
}

// priorityTiers groups people by distinct priority, highest tier first
func priorityTiers(people []model.Applicant) [][]model.Applicant {
	byPriority := make(map[int][]model.Applicant)
	var priorities []int
	for _, p := range people {
		v := p.PriorityValue()
		if _, ok := byPriority[v]; !ok {
			priorities = append(priorities, v)
		}
		byPriority[v] = append(byPriority[v], p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	tiers := make([][]model.Applicant, 0, len(priorities))
	for _, v := range priorities {
		tiers = append(tiers, byPriority[v])
	}
	return tiers
}

// orderCandidates produces the full candidate order for a policy. Eboard candidates always lead.
func orderCandidates(policy Policy, candidates, alreadyRostered []model.Applicant, threshold float64) []model.Applicant {
	eboard, ranked := splitEboard(candidates)

	ordered := make([]model.Applicant, 0, len(candidates))
	ordered = append(ordered, eboard...)

	switch policy {
	case PolicyGenderTiered:
		tally := newGenderTally(alreadyRostered)
		tally.addAll(eboard)
		for _, tier := range priorityTiers(ranked) {
			female, male, unknown := splitByGender(tier)
			sortBySubmission(female)
			sortBySubmission(male)
			sortBySubmission(unknown)
			ordered = append(ordered, interleave(female, male, unknown, &tally, threshold)...)
		}

	case PolicyGenderGlobal:
		tally := newGenderTally(alreadyRostered)
		tally.addAll(eboard)
		female, male, unknown := splitByGender(ranked)
		sortByRank(female)
		sortByRank(male)
		sortByRank(unknown)
		ordered = append(ordered, interleave(female, male, unknown, &tally, threshold)...)

	default:
		sortByRank(ranked)
		ordered = append(ordered, ranked...)
	}

	return ordered
}
