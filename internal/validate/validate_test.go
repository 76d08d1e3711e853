package validate_test

import (
	"testing"

	"postline/internal/domain"
	"postline/internal/validate"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func completeDraft() domain.Draft {
	d := domain.Draft{ID: "d-1", Kind: domain.FlowSingle}
	d.Posting = domain.PostingDetails{
		Title:            "Construction Workers Wanted",
		Country:          "UAE",
		City:             "Dubai",
		LicenseNumber:    "LIC-123",
		ChalaniNumber:    "CH-456",
		ApprovalDate:     domain.DualDate{AD: "2026-01-15", Active: domain.CalendarAD},
		PostingDate:      domain.DualDate{AD: "2026-02-01", Active: domain.CalendarAD},
		AnnouncementType: "newspaper",
	}
	d.Contract = domain.ContractTerms{
		PeriodYears:     intp(2),
		HoursPerDay:     intp(8),
		DaysPerWeek:     intp(6),
		WeeklyOffDays:   intp(1),
		AnnualLeaveDays: intp(30),
		Overtime:        domain.OvertimePaid,
		Food:            domain.ProvisionFree,
		Accommodation:   domain.ProvisionFree,
		Transport:       domain.ProvisionPaid,
	}
	d.Positions = []domain.Position{{
		LocalID:       1,
		Title:         "Mason",
		MaleVacancies: intp(5),
		MonthlySalary: floatp(1500),
		Currency:      "AED",
	}}
	d.Tags = domain.TagRequirements{
		Skills:    []string{"masonry"},
		Education: []string{"SLC"},
		Experience: domain.Experience{
			MinYears:       intp(2),
			PreferredYears: intp(3),
			Domains:        []string{"construction"},
		},
		TitleIDs:   []string{"t-1"},
		TitleNames: []string{"Mason"},
	}
	d.Cutout = &domain.Cutout{
		FileName:  "ad.jpg",
		FileSize:  2048,
		MimeType:  "image/jpeg",
		LocalPath: "/tmp/ad.jpg",
	}
	return d
}

func TestCompleteDraftPassesAllSteps(t *testing.T) {
	d := completeDraft()
	if errs := validate.CheckAll(d); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestPostingDetailsRequiredFields(t *testing.T) {
	d := domain.Draft{}
	errs := validate.Check(validate.StepPostingDetails, d)
	for _, key := range []string{"country", "city", "license_number", "chalani_number", "approval_date", "posting_date", "announcement_type"} {
		if _, ok := errs[key]; !ok {
			t.Errorf("expected error for %s, got %v", key, errs)
		}
	}
}

func TestPostingDateUsesActiveCalendar(t *testing.T) {
	d := completeDraft()
	// BS active but only the AD value filled: the date counts as missing.
	d.Posting.ApprovalDate = domain.DualDate{AD: "2026-01-15", Active: domain.CalendarBS}
	errs := validate.Check(validate.StepPostingDetails, d)
	if _, ok := errs["approval_date"]; !ok {
		t.Fatalf("expected approval_date error, got %v", errs)
	}

	d.Posting.ApprovalDate = domain.DualDate{BS: "2082-10-01", Active: domain.CalendarBS}
	if errs := validate.Check(validate.StepPostingDetails, d); len(errs) != 0 {
		t.Fatalf("expected no errors with BS date, got %v", errs)
	}
}

func TestContractRanges(t *testing.T) {
	d := completeDraft()

	d.Contract.HoursPerDay = intp(17)
	errs := validate.Check(validate.StepContract, d)
	if _, ok := errs["hours_per_day"]; !ok {
		t.Fatalf("expected hours_per_day error, got %v", errs)
	}

	d.Contract.HoursPerDay = nil
	errs = validate.Check(validate.StepContract, d)
	if errs["hours_per_day"] != "hours per day is required" {
		t.Fatalf("expected required message for nil hours, got %q", errs["hours_per_day"])
	}

	d.Contract.HoursPerDay = intp(16)
	d.Contract.AnnualLeaveDays = intp(0)
	if errs := validate.Check(validate.StepContract, d); len(errs) != 0 {
		t.Fatalf("16 hours and zero leave should pass, got %v", errs)
	}
}

func TestPositionErrorsKeyedByLocalID(t *testing.T) {
	d := completeDraft()
	d.Positions = []domain.Position{
		{LocalID: 3, Title: "Welder", MaleVacancies: intp(0), MonthlySalary: floatp(1200), Currency: "AED"},
		{LocalID: 7, MaleVacancies: intp(2), Currency: "AED"},
	}
	errs := validate.Check(validate.StepPositions, d)
	if _, ok := errs["position.3.vacancies"]; !ok {
		t.Errorf("expected position.3.vacancies, got %v", errs)
	}
	if _, ok := errs["position.7.title"]; !ok {
		t.Errorf("expected position.7.title, got %v", errs)
	}
	if _, ok := errs["position.7.salary"]; !ok {
		t.Errorf("expected position.7.salary, got %v", errs)
	}
}

func TestPositionNilCountsAreNotNegative(t *testing.T) {
	d := completeDraft()
	d.Positions[0].MaleVacancies = nil
	d.Positions[0].FemaleVacancies = intp(4)
	if errs := validate.Check(validate.StepPositions, d); len(errs) != 0 {
		t.Fatalf("nil male count with female vacancies should pass, got %v", errs)
	}
}

func TestNoPositionsFailsEarly(t *testing.T) {
	d := completeDraft()
	d.Positions = nil
	errs := validate.Check(validate.StepPositions, d)
	if len(errs) != 1 || errs["positions"] == "" {
		t.Fatalf("expected single positions error, got %v", errs)
	}
}

func TestTagsPreferredBelowMinimum(t *testing.T) {
	d := completeDraft()
	d.Tags.Experience.PreferredYears = intp(1)
	errs := validate.Check(validate.StepTags, d)
	if _, ok := errs["experience.preferred_years"]; !ok {
		t.Fatalf("expected preferred_years error, got %v", errs)
	}
}

func TestTagsTitleListsOutOfSync(t *testing.T) {
	d := completeDraft()
	d.Tags.TitleNames = []string{"Mason", "Welder"}
	errs := validate.Check(validate.StepTags, d)
	if _, ok := errs["titles"]; !ok {
		t.Fatalf("expected titles error, got %v", errs)
	}
}

func TestExpenseFreeSkipsAmount(t *testing.T) {
	d := completeDraft()
	d.Expenses = []domain.Expense{
		{LocalID: 1, Type: domain.ExpenseVisa, Payer: domain.PayerCompany, IsFree: true},
		{LocalID: 2, Type: domain.ExpenseMedical, Payer: domain.PayerWorker},
	}
	errs := validate.Check(validate.StepExpenses, d)
	if _, ok := errs["expense.1.amount"]; ok {
		t.Errorf("free expense should not require an amount: %v", errs)
	}
	if _, ok := errs["expense.2.amount"]; !ok {
		t.Errorf("paid expense requires an amount: %v", errs)
	}
	if _, ok := errs["expense.2.currency"]; !ok {
		t.Errorf("paid expense requires a currency: %v", errs)
	}
}

func TestCutoutRequiresContent(t *testing.T) {
	d := completeDraft()
	d.Cutout = nil
	errs := validate.Check(validate.StepCutout, d)
	if _, ok := errs["cutout"]; !ok {
		t.Fatalf("expected cutout error, got %v", errs)
	}

	d.Cutout = &domain.Cutout{UploadedURL: "https://cdn.example/ad.jpg"}
	if errs := validate.Check(validate.StepCutout, d); len(errs) != 0 {
		t.Fatalf("uploaded cutout should pass, got %v", errs)
	}
}

func TestInterviewTimeFormats(t *testing.T) {
	valid := []string{"10:30", "10:30 AM", "10:30pm", "0:00", "23:59", "1:05 am"}
	for _, v := range valid {
		if !validate.ValidInterviewTime(v) {
			t.Errorf("%q should be valid", v)
		}
	}
	invalid := []string{"", "24:00", "13:00 PM", "0:30 AM", "10:5", "10.30", "10:60"}
	for _, v := range invalid {
		if validate.ValidInterviewTime(v) {
			t.Errorf("%q should be invalid", v)
		}
	}
}

func TestUntouchedInterviewPasses(t *testing.T) {
	d := completeDraft()
	d.Interview = nil
	if errs := validate.Check(validate.StepInterview, d); len(errs) != 0 {
		t.Fatalf("nil interview should pass, got %v", errs)
	}
}

func TestInterviewExpensesUseOwnNamespace(t *testing.T) {
	d := completeDraft()
	d.Interview = &domain.Interview{
		Time:     "10:30 AM",
		Expenses: []domain.Expense{{LocalID: 2, Payer: domain.PayerWorker}},
	}
	errs := validate.Check(validate.StepInterview, d)
	if _, ok := errs["interview.expense.2.type"]; !ok {
		t.Fatalf("expected interview.expense.2.type, got %v", errs)
	}
}

func TestReviewAggregatesWithStepPrefix(t *testing.T) {
	d := completeDraft()
	d.Posting.Country = ""
	d.Cutout = nil
	errs := validate.Check(validate.StepReview, d)
	if _, ok := errs["posting_details.country"]; !ok {
		t.Errorf("expected posting_details.country, got %v", errs)
	}
	if _, ok := errs["cutout.cutout"]; !ok {
		t.Errorf("expected cutout.cutout, got %v", errs)
	}
}

func TestCheckBulk(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowBulk}
	errs := validate.CheckBulk(d)
	if _, ok := errs["bulk"]; !ok {
		t.Fatalf("expected bulk error for nil bulk, got %v", errs)
	}

	d.Bulk = &domain.BulkPosting{
		Title: "Gulf Opportunities",
		Entries: []domain.BulkEntry{
			{LocalID: 1, Country: "UAE", JobCount: intp(10)},
			{LocalID: 2, JobCount: intp(0)},
		},
	}
	errs = validate.CheckBulk(d)
	if _, ok := errs["entry.2.country"]; !ok {
		t.Errorf("expected entry.2.country, got %v", errs)
	}
	if _, ok := errs["entry.2.job_count"]; !ok {
		t.Errorf("expected entry.2.job_count, got %v", errs)
	}
	if _, ok := errs["entry.1.country"]; ok {
		t.Errorf("entry 1 should pass: %v", errs)
	}

	d.Bulk.Entries[1] = domain.BulkEntry{LocalID: 2, Country: "Qatar", JobCount: intp(5)}
	if errs := validate.CheckBulk(d); len(errs) != 0 {
		t.Fatalf("expected clean bulk check, got %v", errs)
	}
}
