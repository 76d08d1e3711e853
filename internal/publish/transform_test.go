package publish_test

import (
	"encoding/json"
	"strings"
	"testing"

	"postline/internal/domain"
	"postline/internal/publish"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestTitleFallsBackToFirstPosition(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Positions = []domain.Position{{LocalID: 1, Title: "Electrician"}}

	p := publish.Transform(d)
	if p.Title != "Electrician Position" {
		t.Fatalf("title = %q, want fallback from first position", p.Title)
	}

	d.Posting.Title = "Skilled Electricians for Qatar"
	if p := publish.Transform(d); p.Title != "Skilled Electricians for Qatar" {
		t.Fatalf("explicit title must win, got %q", p.Title)
	}
}

func TestHalfEnteredExpensesAreDropped(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Expenses = []domain.Expense{
		{LocalID: 1, Type: domain.ExpenseVisa, Payer: domain.PayerCompany, IsFree: true},
		{LocalID: 2, Type: domain.ExpenseMedical},
		{LocalID: 3, Payer: domain.PayerWorker},
	}

	p := publish.Transform(d)
	if len(p.Expenses) != 1 {
		t.Fatalf("expenses = %d, want 1 (rows without type or payer dropped)", len(p.Expenses))
	}
	if p.Expenses[0].Type != domain.ExpenseVisa {
		t.Fatalf("kept the wrong entry: %+v", p.Expenses[0])
	}
}

func TestFreeExpenseSerializesNullAmount(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Expenses = []domain.Expense{{LocalID: 1, Type: domain.ExpenseVisa, Payer: domain.PayerCompany, IsFree: true}}

	data, err := json.Marshal(publish.Transform(d))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"is_free":true,"amount":null`) {
		t.Fatalf("free expense should carry a null amount: %s", data)
	}
}

func TestInterviewNullWithoutDate(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Interview = &domain.Interview{Location: "Kathmandu"}

	p := publish.Transform(d)
	if p.Interview != nil {
		t.Fatal("interview without a date must transform to nil")
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"interview":null`) {
		t.Fatalf("interview must serialize as an explicit null: %s", data)
	}
}

func TestInterviewCarriedWithDate(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Interview = &domain.Interview{
		Date:     domain.DualDate{AD: "2026-03-01", Active: domain.CalendarAD},
		Time:     "10:30 AM",
		Location: "Kathmandu",
		Expenses: []domain.Expense{{LocalID: 1, Type: domain.ExpenseOther, Payer: domain.PayerShared, Amount: floatp(500), Currency: "NPR"}},
	}

	p := publish.Transform(d)
	if p.Interview == nil {
		t.Fatal("interview with a date must be carried")
	}
	if len(p.Interview.Expenses) != 1 || p.Interview.Expenses[0].Currency != "NPR" {
		t.Fatalf("interview expenses lost: %+v", p.Interview)
	}
}

func TestOverridesAlwaysPresent(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Positions = []domain.Position{{LocalID: 1, Title: "Cook", MaleVacancies: intp(2), MonthlySalary: floatp(1400), Currency: "AED"}}

	data, err := json.Marshal(publish.Transform(d))
	if err != nil {
		t.Fatal(err)
	}
	// Every override field appears as an explicit null when not set.
	if !strings.Contains(string(data), `"overrides":{"hours_per_day":null`) {
		t.Fatalf("overrides must serialize field-by-field with nulls: %s", data)
	}
}

func TestOverrideValuesCarried(t *testing.T) {
	ot := domain.OvertimeUnpaid
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Positions = []domain.Position{{
		LocalID:       1,
		Title:         "Supervisor",
		MaleVacancies: intp(1),
		MonthlySalary: floatp(2500),
		Currency:      "AED",
		Overrides:     domain.PositionOverrides{HoursPerDay: intp(10), Overtime: &ot},
	}}

	p := publish.Transform(d)
	o := p.Positions[0].Overrides
	if o.HoursPerDay == nil || *o.HoursPerDay != 10 {
		t.Fatalf("hours override lost: %+v", o)
	}
	if o.Overtime == nil || *o.Overtime != domain.OvertimeUnpaid {
		t.Fatalf("overtime override lost: %+v", o)
	}
	if o.Food != nil {
		t.Fatalf("unset override must stay nil: %+v", o)
	}
}

func TestVacancyTotals(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Positions = []domain.Position{{LocalID: 1, Title: "Mason", MaleVacancies: intp(3), FemaleVacancies: intp(2)}}

	p := publish.Transform(d)
	v := p.Positions[0].Vacancies
	if v.Male != 3 || v.Female != 2 || v.Total != 5 {
		t.Fatalf("vacancies = %+v", v)
	}
}

func TestCanonicalTitlesPairedByIndex(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Tags = domain.TagRequirements{
		TitleIDs:   []string{"t-1", "t-2"},
		TitleNames: []string{"Mason"},
	}

	p := publish.Transform(d)
	titles := p.Tags.CanonicalTitles
	if len(titles) != 2 {
		t.Fatalf("titles = %d, want 2", len(titles))
	}
	if titles[0].Name != "Mason" || titles[1].Name != "" {
		t.Fatalf("titles paired wrong: %+v", titles)
	}
}

func TestBulkPayload(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowBulk}
	d.Bulk = &domain.BulkPosting{
		Title:   "Gulf Opportunities",
		Company: "Al Futtaim",
		Entries: []domain.BulkEntry{
			{LocalID: 1, Country: "UAE", JobCount: intp(10), Position: "Driver"},
			{LocalID: 2, Country: "Qatar", JobCount: intp(5)},
			{LocalID: 3, Country: "UAE", JobCount: intp(3)},
		},
	}

	p := publish.Transform(d)
	if p.Bulk == nil {
		t.Fatal("bulk payload missing")
	}
	if p.Bulk.TotalJobs != 18 {
		t.Fatalf("total jobs = %d, want 18", p.Bulk.TotalJobs)
	}
	if len(p.Bulk.Countries) != 2 || p.Bulk.Countries[0] != "UAE" || p.Bulk.Countries[1] != "Qatar" {
		t.Fatalf("countries = %v", p.Bulk.Countries)
	}
	if p.Title != "Gulf Opportunities" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestCutoutOmittedWithoutContent(t *testing.T) {
	d := domain.Draft{Kind: domain.FlowSingle}
	d.Cutout = &domain.Cutout{FileName: "ad.jpg"}
	if p := publish.Transform(d); p.Cutout != nil {
		t.Fatal("cutout without a path or URL must transform to nil")
	}

	d.Cutout.UploadedURL = "https://cdn.example/ad.jpg"
	d.Cutout.IsUploaded = true
	p := publish.Transform(d)
	if p.Cutout == nil || p.Cutout.URL == "" {
		t.Fatalf("uploaded cutout lost: %+v", p.Cutout)
	}
}
