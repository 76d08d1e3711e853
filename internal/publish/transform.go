package publish

import (
	"fmt"

	"postline/internal/domain"
)

// Payload is the normalized shape handed to the persistence boundary on
// publish. Nullable sub-objects are pointers without omitempty so the
// receiver can tell "absent" from "present but empty".
type Payload struct {
	Title          string            `json:"title"`
	Kind           domain.Flow       `json:"kind"`
	Administrative Administrative    `json:"administrative_details"`
	Contract       Contract          `json:"contract"`
	Positions      []PostingPosition `json:"positions"`
	Tags           Tags              `json:"tags_and_requirements"`
	Expenses       []PostingExpense  `json:"expenses"`
	Interview      *PostingInterview `json:"interview"`
	Cutout         *PostingCutout    `json:"cutout"`
	Bulk           *Bulk             `json:"bulk,omitempty"`
}

type Administrative struct {
	Country          string          `json:"country"`
	City             string          `json:"city"`
	LicenseNumber    string          `json:"license_number"`
	ChalaniNumber    string          `json:"chalani_number"`
	ApprovalDate     domain.DualDate `json:"approval_date"`
	PostingDate      domain.DualDate `json:"posting_date"`
	AnnouncementType string          `json:"announcement_type"`
	Notes            string          `json:"notes,omitempty"`
}

type Contract struct {
	PeriodYears     *int                  `json:"period_years"`
	Renewable       bool                  `json:"renewable"`
	HoursPerDay     *int                  `json:"hours_per_day"`
	DaysPerWeek     *int                  `json:"days_per_week"`
	Overtime        domain.OvertimePolicy `json:"overtime"`
	WeeklyOffDays   *int                  `json:"weekly_off_days"`
	AnnualLeaveDays *int                  `json:"annual_leave_days"`
	Food            domain.Provision      `json:"food"`
	Accommodation   domain.Provision      `json:"accommodation"`
	Transport       domain.Provision      `json:"transport"`
}

type Vacancies struct {
	Male   int `json:"male"`
	Female int `json:"female"`
	Total  int `json:"total"`
}

type Salary struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Overrides mirrors domain.PositionOverrides with every field explicitly
// null when absent, never omitted, so the boundary can distinguish
// "no override" from an override stub.
type Overrides struct {
	HoursPerDay   *int                   `json:"hours_per_day"`
	DaysPerWeek   *int                   `json:"days_per_week"`
	Overtime      *domain.OvertimePolicy `json:"overtime"`
	Food          *domain.Provision      `json:"food"`
	Accommodation *domain.Provision      `json:"accommodation"`
	Transport     *domain.Provision      `json:"transport"`
}

// PostingPosition and the other Posting-prefixed types are the payload's
// wire shapes. The prefix keeps their schema names distinct from the draft
// model's types of the same role when both appear in one OpenAPI document.
type PostingPosition struct {
	Title     string    `json:"title"`
	Vacancies Vacancies `json:"vacancies"`
	Salary    Salary    `json:"salary"`
	Overrides Overrides `json:"overrides"`
	Notes     string    `json:"notes,omitempty"`
}

type CanonicalTitle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PostingExperience struct {
	MinYears       int      `json:"min_years"`
	PreferredYears *int     `json:"preferred_years"`
	Domains        []string `json:"domains"`
}

type Tags struct {
	Skills          []string          `json:"skills"`
	Education       []string          `json:"education"`
	Experience      PostingExperience `json:"experience"`
	CanonicalTitles []CanonicalTitle  `json:"canonical_titles"`
}

type PostingExpense struct {
	Type     domain.ExpenseType  `json:"type"`
	Payer    domain.ExpensePayer `json:"payer"`
	IsFree   bool                `json:"is_free"`
	Amount   *float64            `json:"amount"`
	Currency string              `json:"currency,omitempty"`
	Notes    string              `json:"notes,omitempty"`
}

type PostingInterview struct {
	Date              domain.DualDate  `json:"date"`
	Time              string           `json:"time,omitempty"`
	Location          string           `json:"location,omitempty"`
	ContactPerson     string           `json:"contact_person,omitempty"`
	RequiredDocuments []string         `json:"required_documents"`
	Notes             string           `json:"notes,omitempty"`
	Expenses          []PostingExpense `json:"expenses"`
}

type PostingCutout struct {
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type"`
	IsUploaded bool   `json:"is_uploaded"`
	URL        string `json:"url,omitempty"`
}

type PostingBulkEntry struct {
	Country  string `json:"country"`
	JobCount int    `json:"job_count"`
	Position string `json:"position,omitempty"`
}

type Bulk struct {
	Company   string             `json:"company,omitempty"`
	Entries   []PostingBulkEntry `json:"entries"`
	TotalJobs int                `json:"total_jobs"`
	Countries []string           `json:"countries"`
}

// Transform maps an assembled draft into the publish payload. Total and
// pure: it consults the draft alone, never session state, and never fails.
func Transform(d domain.Draft) Payload {
	if d.Kind == domain.FlowBulk {
		return transformBulk(d)
	}
	p := Payload{
		Title: postingTitle(d),
		Kind:  domain.FlowSingle,
		Administrative: Administrative{
			Country:          d.Posting.Country,
			City:             d.Posting.City,
			LicenseNumber:    d.Posting.LicenseNumber,
			ChalaniNumber:    d.Posting.ChalaniNumber,
			ApprovalDate:     d.Posting.ApprovalDate,
			PostingDate:      d.Posting.PostingDate,
			AnnouncementType: d.Posting.AnnouncementType,
			Notes:            d.Posting.Notes,
		},
		Contract: Contract{
			PeriodYears:     d.Contract.PeriodYears,
			Renewable:       d.Contract.Renewable,
			HoursPerDay:     d.Contract.HoursPerDay,
			DaysPerWeek:     d.Contract.DaysPerWeek,
			Overtime:        d.Contract.Overtime,
			WeeklyOffDays:   d.Contract.WeeklyOffDays,
			AnnualLeaveDays: d.Contract.AnnualLeaveDays,
			Food:            d.Contract.Food,
			Accommodation:   d.Contract.Accommodation,
			Transport:       d.Contract.Transport,
		},
		Positions: transformPositions(d.Positions),
		Tags:      transformTags(d.Tags),
		Expenses:  transformExpenses(d.Expenses),
		Interview: transformInterview(d.Interview),
		Cutout:    transformCutout(d.Cutout),
	}
	return p
}

// postingTitle falls back to the first position's title when no explicit
// posting title was entered.
func postingTitle(d domain.Draft) string {
	if d.Posting.Title != "" {
		return d.Posting.Title
	}
	if len(d.Positions) > 0 && d.Positions[0].Title != "" {
		return fmt.Sprintf("%s Position", d.Positions[0].Title)
	}
	return ""
}

func transformPositions(positions []domain.Position) []PostingPosition {
	res := make([]PostingPosition, 0, len(positions))
	for _, p := range positions {
		male, female := 0, 0
		if p.MaleVacancies != nil {
			male = *p.MaleVacancies
		}
		if p.FemaleVacancies != nil {
			female = *p.FemaleVacancies
		}
		salary := 0.0
		if p.MonthlySalary != nil {
			salary = *p.MonthlySalary
		}
		res = append(res, PostingPosition{
			Title:     p.Title,
			Vacancies: Vacancies{Male: male, Female: female, Total: male + female},
			Salary:    Salary{Amount: salary, Currency: p.Currency},
			Overrides: Overrides{
				HoursPerDay:   p.Overrides.HoursPerDay,
				DaysPerWeek:   p.Overrides.DaysPerWeek,
				Overtime:      p.Overrides.Overtime,
				Food:          p.Overrides.Food,
				Accommodation: p.Overrides.Accommodation,
				Transport:     p.Overrides.Transport,
			},
			Notes: p.Notes,
		})
	}
	return res
}

func transformTags(t domain.TagRequirements) Tags {
	titles := make([]CanonicalTitle, 0, len(t.TitleIDs))
	for i, id := range t.TitleIDs {
		name := ""
		if i < len(t.TitleNames) {
			name = t.TitleNames[i]
		}
		titles = append(titles, CanonicalTitle{ID: id, Name: name})
	}
	minYears := 0
	if t.Experience.MinYears != nil {
		minYears = *t.Experience.MinYears
	}
	return Tags{
		Skills:    append([]string{}, t.Skills...),
		Education: append([]string{}, t.Education...),
		Experience: PostingExperience{
			MinYears:       minYears,
			PreferredYears: t.Experience.PreferredYears,
			Domains:        append([]string{}, t.Experience.Domains...),
		},
		CanonicalTitles: titles,
	}
}

// transformExpenses drops entries missing a type or payer; half-entered
// rows never reach the boundary.
func transformExpenses(expenses []domain.Expense) []PostingExpense {
	res := make([]PostingExpense, 0, len(expenses))
	for _, e := range expenses {
		if e.Type == "" || e.Payer == "" {
			continue
		}
		res = append(res, PostingExpense{
			Type:     e.Type,
			Payer:    e.Payer,
			IsFree:   e.IsFree,
			Amount:   e.Amount,
			Currency: e.Currency,
			Notes:    e.Notes,
		})
	}
	return res
}

// transformInterview returns nil, serialized as exactly null, unless an
// interview date was provided.
func transformInterview(iv *domain.Interview) *PostingInterview {
	if iv == nil || iv.Date.IsZero() {
		return nil
	}
	return &PostingInterview{
		Date:              iv.Date,
		Time:              iv.Time,
		Location:          iv.Location,
		ContactPerson:     iv.ContactPerson,
		RequiredDocuments: append([]string{}, iv.RequiredDocuments...),
		Notes:             iv.Notes,
		Expenses:          transformExpenses(iv.Expenses),
	}
}

func transformCutout(c *domain.Cutout) *PostingCutout {
	if !c.HasContent() {
		return nil
	}
	return &PostingCutout{
		FileName:   c.FileName,
		FileSize:   c.FileSize,
		MimeType:   c.MimeType,
		IsUploaded: c.IsUploaded,
		URL:        c.UploadedURL,
	}
}

func transformBulk(d domain.Draft) Payload {
	p := Payload{Kind: domain.FlowBulk, Positions: []PostingPosition{}, Expenses: []PostingExpense{}}
	if d.Bulk == nil {
		return p
	}
	p.Title = d.Bulk.Title
	entries := make([]PostingBulkEntry, 0, len(d.Bulk.Entries))
	for _, e := range d.Bulk.Entries {
		count := 0
		if e.JobCount != nil {
			count = *e.JobCount
		}
		entries = append(entries, PostingBulkEntry{Country: e.Country, JobCount: count, Position: e.Position})
	}
	p.Bulk = &Bulk{
		Company:   d.Bulk.Company,
		Entries:   entries,
		TotalJobs: d.Bulk.TotalJobs(),
		Countries: d.Bulk.Countries(),
	}
	return p
}
