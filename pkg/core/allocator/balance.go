package allocator

import "github.com/jakechorley/autoroster/pkg/core/model"

// DefaultFemaleThreshold is the female share below which the balancer prefers a female candidate
const DefaultFemaleThreshold = 0.53

// genderTally tracks the female share of a growing selection.
// Unknown genders count toward the total but never as female.
type genderTally struct {
	female int
	total  int
}

func newGenderTally(people []model.Applicant) genderTally {
	var t genderTally
	t.addAll(people)
	return t
}

func (t *genderTally) add(a model.Applicant) {
	t.total++
	if a.Gender == model.GenderFemale {
		t.female++
	}
}

func (t *genderTally) addAll(people []model.Applicant) {
	for _, p := range people {
		t.add(p)
	}
}

// share is 0 for an empty selection
func (t genderTally) share() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.female) / float64(t.total)
}

// belowThreshold is false for an empty selection, so the male queue leads
func (t genderTally) belowThreshold(threshold float64) bool {
	if t.total == 0 {
		return false
	}
	return t.share() < threshold
}

// interleave merges the queues one candidate at a time.
//
// While the female share of everything selected so far is below threshold, the next female is
// taken; otherwise the next male; once males run out the remaining females follow. Nothing is
// selected yet when the tally is empty, which counts as not below threshold. The unknown
// queue is taken whenever its head outranks the candidate the balancer would pick, so unknown
// genders keep their place in the priority order.
func interleave(female, male, unknown []model.Applicant, tally *genderTally, threshold float64) []model.Applicant {
	out := make([]model.Applicant, 0, len(female)+len(male)+len(unknown))
	fi, mi, ui := 0, 0, 0

	for fi < len(female) || mi < len(male) || ui < len(unknown) {
		var pick *model.Applicant
		pickFemale := false

		switch {
		case fi < len(female) && tally.belowThreshold(threshold):
			pick, pickFemale = &female[fi], true
		case mi < len(male):
			pick = &male[mi]
		case fi < len(female):
			pick, pickFemale = &female[fi], true
		}

		if ui < len(unknown) && (pick == nil || rankBefore(unknown[ui], *pick)) {
			next := unknown[ui]
			ui++
			tally.add(next)
			out = append(out, next)
			continue
		}

		tally.add(*pick)
		out = append(out, *pick)
		if pickFemale {
			fi++
		} else {
			mi++
		}
	}

	return out
}

// FemaleShare returns the share of people whose gender is female, 0 for an empty slice
func FemaleShare(people []model.Applicant) float64 {
	t := newGenderTally(people)
	return t.share()
}
