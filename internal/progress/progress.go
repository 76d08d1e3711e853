package progress

import (
	"postline/internal/domain"
	"postline/internal/validate"
)

// Result is a draft's recomputed completion status. CurrentStep is the
// 1-based index of the first failing content step, or the review step when
// everything passes.
type Result struct {
	CurrentStep    int  `json:"current_step"`
	CompletedCount int  `json:"completed_count"`
	ReadyToPublish bool `json:"ready_to_publish"`
}

// TotalSteps is the number of content steps the evaluator reports on.
const TotalSteps = 6

// Evaluate recomputes completion from the persisted draft alone. The stored
// step hint is deliberately ignored: two drafts with identical content but
// different hints evaluate identically, which keeps list badges honest even
// against stale or hand-edited records.
func Evaluate(d domain.Draft) Result {
	if d.Kind == domain.FlowBulk {
		return evaluateBulk(d)
	}

	checks := []bool{
		len(validate.Check(validate.StepPostingDetails, d)) == 0,
		len(validate.Check(validate.StepContract, d)) == 0,
		len(validate.Check(validate.StepPositions, d)) == 0,
		len(validate.Check(validate.StepTags, d)) == 0,
		// expenses are optional content: an untouched list still counts as
		// done; publish runs the strict validator
		true,
		d.Cutout.HasContent(),
	}

	res := Result{CurrentStep: int(validate.StepReview) + 1}
	first := 0
	for i, pass := range checks {
		if pass {
			res.CompletedCount++
		} else if first == 0 {
			first = i + 1
		}
	}
	if first > 0 {
		res.CurrentStep = first
	}

	allPass := res.CompletedCount == len(checks)
	interviewOK := len(validate.Check(validate.StepInterview, d)) == 0
	res.ReadyToPublish = allPass && interviewOK &&
		d.Review.IsComplete && d.Submit.IsComplete
	return res
}

// evaluateBulk short-circuits: a bulk draft has one screen, so progress is
// a fixed single value rather than a step breakdown.
func evaluateBulk(d domain.Draft) Result {
	ready := d.Bulk != nil && len(d.Bulk.Entries) > 0 &&
		(d.Bulk.Title != "" || d.Bulk.Company != "")
	res := Result{CurrentStep: 1, ReadyToPublish: ready}
	if ready {
		res.CompletedCount = 1
	}
	return res
}
