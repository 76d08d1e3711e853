package progress_test

import (
	"testing"

	"postline/internal/domain"
	"postline/internal/progress"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func filledDraft() domain.Draft {
	d := domain.Draft{ID: "d-1", Kind: domain.FlowSingle}
	d.Posting = domain.PostingDetails{
		Title:            "Factory Workers",
		Country:          "Malaysia",
		City:             "Penang",
		LicenseNumber:    "LIC-9",
		ChalaniNumber:    "CH-1",
		ApprovalDate:     domain.DualDate{BS: "2082-05-10", Active: domain.CalendarBS},
		PostingDate:      domain.DualDate{BS: "2082-05-20", Active: domain.CalendarBS},
		AnnouncementType: "website",
	}
	d.Contract = domain.ContractTerms{
		PeriodYears:     intp(3),
		HoursPerDay:     intp(8),
		DaysPerWeek:     intp(6),
		WeeklyOffDays:   intp(1),
		AnnualLeaveDays: intp(21),
		Overtime:        domain.OvertimeAsPerLaw,
		Food:            domain.ProvisionPaid,
		Accommodation:   domain.ProvisionFree,
		Transport:       domain.ProvisionNotProvided,
	}
	d.Positions = []domain.Position{{
		LocalID:         1,
		Title:           "Operator",
		FemaleVacancies: intp(10),
		MonthlySalary:   floatp(1800),
		Currency:        "MYR",
	}}
	d.Tags = domain.TagRequirements{
		Skills:    []string{"assembly"},
		Education: []string{"SLC"},
		Experience: domain.Experience{
			MinYears: intp(0),
			Domains:  []string{"manufacturing"},
		},
		TitleIDs:   []string{"t-9"},
		TitleNames: []string{"Operator"},
	}
	d.Cutout = &domain.Cutout{FileName: "ad.png", MimeType: "image/png", LocalPath: "/tmp/ad.png", FileSize: 100}
	return d
}

// A draft with everything but the cutout: expenses untouched still count as
// complete, so only the cutout is outstanding.
func TestNoExpensesOnlyCutoutOutstanding(t *testing.T) {
	d := filledDraft()
	d.Cutout = nil

	res := progress.Evaluate(d)
	if res.CompletedCount != 5 {
		t.Fatalf("completed = %d, want 5", res.CompletedCount)
	}
	if res.CurrentStep != 6 {
		t.Fatalf("current step = %d, want 6 (cutout)", res.CurrentStep)
	}
	if res.ReadyToPublish {
		t.Fatal("draft without cutout must not be ready")
	}
}

func TestAllStepsDoneButMarkersMissing(t *testing.T) {
	d := filledDraft()
	res := progress.Evaluate(d)
	if res.CompletedCount != progress.TotalSteps {
		t.Fatalf("completed = %d, want %d", res.CompletedCount, progress.TotalSteps)
	}
	if res.CurrentStep != 8 {
		t.Fatalf("current step = %d, want 8 (review)", res.CurrentStep)
	}
	if res.ReadyToPublish {
		t.Fatal("unconfirmed review markers must block readiness")
	}

	d.Review.IsComplete = true
	if progress.Evaluate(d).ReadyToPublish {
		t.Fatal("review alone is not enough, submit must also be confirmed")
	}

	d.Submit.IsComplete = true
	if !progress.Evaluate(d).ReadyToPublish {
		t.Fatal("expected ready with both markers confirmed")
	}
}

func TestStepHintNeverFeedsProgress(t *testing.T) {
	d := filledDraft()
	d.Contract = domain.ContractTerms{}

	base := progress.Evaluate(d)
	if base.CurrentStep != 2 {
		t.Fatalf("current step = %d, want 2 (contract)", base.CurrentStep)
	}

	// Same content with a stale hint pointing elsewhere evaluates identically.
	d.StepHint = 6
	if got := progress.Evaluate(d); got != base {
		t.Fatalf("hinted draft evaluated to %+v, want %+v", got, base)
	}
}

func TestGapsReportFirstFailingStep(t *testing.T) {
	d := filledDraft()
	d.Posting.Country = ""
	d.Positions = nil

	res := progress.Evaluate(d)
	if res.CurrentStep != 1 {
		t.Fatalf("current step = %d, want 1", res.CurrentStep)
	}
	if res.CompletedCount != 4 {
		t.Fatalf("completed = %d, want 4", res.CompletedCount)
	}
}

func TestInterviewErrorsBlockReadinessOnly(t *testing.T) {
	d := filledDraft()
	d.Review.IsComplete = true
	d.Submit.IsComplete = true
	d.Interview = &domain.Interview{Time: "25:00"}

	res := progress.Evaluate(d)
	if res.CompletedCount != progress.TotalSteps {
		t.Fatalf("interview is not a counted step; completed = %d", res.CompletedCount)
	}
	if res.ReadyToPublish {
		t.Fatal("invalid interview time must block publish readiness")
	}
}

func TestBulkProgress(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowBulk}
	res := progress.Evaluate(d)
	if res.ReadyToPublish || res.CompletedCount != 0 {
		t.Fatalf("empty bulk draft should not be ready: %+v", res)
	}

	d.Bulk = &domain.BulkPosting{
		Title:   "Gulf Jobs",
		Entries: []domain.BulkEntry{{LocalID: 1, Country: "UAE", JobCount: intp(10)}},
	}
	res = progress.Evaluate(d)
	if !res.ReadyToPublish || res.CompletedCount != 1 || res.CurrentStep != 1 {
		t.Fatalf("filled bulk draft should be ready: %+v", res)
	}
}
