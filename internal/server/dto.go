package server

import (
	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/progress"
	"postline/internal/publish"
	"postline/internal/repo"
	"postline/internal/validate"
)

// Request payloads

type CreateDraftRequest struct {
	Kind string `json:"kind" enum:"single,bulk"`
}

type PostingDetailsRequest struct {
	Title            string          `json:"title,omitempty"`
	Country          string          `json:"country,omitempty"`
	City             string          `json:"city,omitempty"`
	LicenseNumber    string          `json:"license_number,omitempty"`
	ChalaniNumber    string          `json:"chalani_number,omitempty"`
	ApprovalDate     domain.DualDate `json:"approval_date"`
	PostingDate      domain.DualDate `json:"posting_date"`
	AnnouncementType string          `json:"announcement_type,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

type ContractRequest struct {
	PeriodYears     *int   `json:"period_years,omitempty"`
	Renewable       bool   `json:"renewable,omitempty"`
	HoursPerDay     *int   `json:"hours_per_day,omitempty"`
	DaysPerWeek     *int   `json:"days_per_week,omitempty"`
	Overtime        string `json:"overtime,omitempty" enum:"paid,unpaid,as_per_law,"`
	WeeklyOffDays   *int   `json:"weekly_off_days,omitempty"`
	AnnualLeaveDays *int   `json:"annual_leave_days,omitempty"`
	Food            string `json:"food,omitempty" enum:"free,paid,not_provided,"`
	Accommodation   string `json:"accommodation,omitempty" enum:"free,paid,not_provided,"`
	Transport       string `json:"transport,omitempty" enum:"free,paid,not_provided,"`
}

type PositionRequest struct {
	Title           string                   `json:"title,omitempty"`
	MaleVacancies   *int                     `json:"male_vacancies,omitempty"`
	FemaleVacancies *int                     `json:"female_vacancies,omitempty"`
	MonthlySalary   *float64                 `json:"monthly_salary,omitempty"`
	Currency        string                   `json:"currency,omitempty"`
	Overrides       domain.PositionOverrides `json:"overrides,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
}

type TagsRequest struct {
	Skills         []string `json:"skills,omitempty"`
	Education      []string `json:"education,omitempty"`
	MinYears       *int     `json:"min_years,omitempty"`
	PreferredYears *int     `json:"preferred_years,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	TitleIDs       []string `json:"title_ids,omitempty"`
	TitleNames     []string `json:"title_names,omitempty"`
}

type ExpenseRequest struct {
	Type     string   `json:"type,omitempty"`
	Payer    string   `json:"payer,omitempty" enum:"company,worker,shared,"`
	IsFree   bool     `json:"is_free,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

type InterviewRequest struct {
	Date              domain.DualDate `json:"date"`
	Time              string          `json:"time,omitempty"`
	Location          string          `json:"location,omitempty"`
	ContactPerson     string          `json:"contact_person,omitempty"`
	RequiredDocuments []string        `json:"required_documents,omitempty"`
	Notes             string          `json:"notes,omitempty"`
}

type CutoutAttachRequest struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	LocalPath string `json:"local_path"`
	FileSize  int64  `json:"file_size"`
}

type CutoutUploadedRequest struct {
	URL string `json:"url"`
}

type BulkInfoRequest struct {
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
}

type BulkEntryRequest struct {
	Country  string `json:"country,omitempty"`
	JobCount *int   `json:"job_count,omitempty"`
	Position string `json:"position,omitempty"`
}

type ReviewRequest struct {
	ReviewComplete *bool `json:"review_complete,omitempty"`
	SubmitComplete *bool `json:"submit_complete,omitempty"`
}

// Response payloads

type DraftResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Title          string `json:"title,omitempty"`
	Country        string `json:"country,omitempty"`
	IsPartial      bool   `json:"is_partial"`
	Published      bool   `json:"published"`
	StepHint       int    `json:"step_hint"`
	CurrentStep    int    `json:"current_step"`
	CompletedCount int    `json:"completed_count"`
	ReadyToPublish bool   `json:"ready_to_publish"`
	CreatedAt      string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt      string `json:"updated_at,omitempty" format:"date-time"`
}

type DraftDetailResponse struct {
	DraftResponse
	Draft domain.Draft `json:"draft"`
}

type LocalIDResponse struct {
	LocalID int `json:"local_id"`
}

type ProgressResponse struct {
	CurrentStep    int    `json:"current_step"`
	CurrentName    string `json:"current_step_name"`
	CompletedCount int    `json:"completed_count"`
	TotalSteps     int    `json:"total_steps"`
	ReadyToPublish bool   `json:"ready_to_publish"`
}

type ValidationResponse struct {
	OK    bool                       `json:"ok"`
	Steps map[string]validate.Errors `json:"steps,omitempty"`
}

type CatalogResponse struct {
	Countries          []string `json:"countries"`
	AnnouncementTypes  []string `json:"announcement_types"`
	ExpenseTypes       []string `json:"expense_types"`
	InterviewDocuments []string `json:"interview_documents"`
	DefaultCurrency    string   `json:"default_currency"`
	CutoutMaxSizeBytes int64    `json:"cutout_max_size_bytes"`
	CutoutMimeTypes    []string `json:"cutout_mime_types"`
}

type PublishResponse struct {
	PostingID   string `json:"posting_id"`
	DraftID     string `json:"draft_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	PublishedAt string `json:"published_at" format:"date-time"`
}

type PostingResponse struct {
	PublishResponse
	Payload publish.Payload `json:"payload"`
}

// Mapping

func draftResponse(d domain.Draft) DraftResponse {
	res := progress.Evaluate(d)
	title := d.Posting.Title
	country := d.Posting.Country
	if d.Kind == domain.FlowBulk && d.Bulk != nil {
		title = d.Bulk.Title
	}
	return DraftResponse{
		ID:             d.ID,
		Kind:           string(d.Kind),
		Title:          title,
		Country:        country,
		IsPartial:      d.IsPartial,
		Published:      d.Published,
		StepHint:       d.StepHint,
		CurrentStep:    res.CurrentStep,
		CompletedCount: res.CompletedCount,
		ReadyToPublish: res.ReadyToPublish,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func mapDrafts(items []domain.Draft) []DraftResponse {
	out := make([]DraftResponse, 0, len(items))
	for _, d := range items {
		out = append(out, draftResponse(d))
	}
	return out
}

func draftDetailResponse(d domain.Draft) DraftDetailResponse {
	return DraftDetailResponse{DraftResponse: draftResponse(d), Draft: d}
}

func progressResponse(res progress.Result) ProgressResponse {
	name := ""
	if res.CurrentStep >= 1 && res.CurrentStep <= len(validate.Steps) {
		name = validate.Steps[res.CurrentStep-1].Name
	}
	return ProgressResponse{
		CurrentStep:    res.CurrentStep,
		CurrentName:    name,
		CompletedCount: res.CompletedCount,
		TotalSteps:     progress.TotalSteps,
		ReadyToPublish: res.ReadyToPublish,
	}
}

func validationResponse(d domain.Draft) ValidationResponse {
	if d.Kind == domain.FlowBulk {
		errs := validate.CheckBulk(d)
		if len(errs) == 0 {
			return ValidationResponse{OK: true}
		}
		return ValidationResponse{Steps: map[string]validate.Errors{"bulk": errs}}
	}
	stepErrs := validate.CheckAll(d)
	if len(stepErrs) == 0 {
		return ValidationResponse{OK: true}
	}
	named := make(map[string]validate.Errors, len(stepErrs))
	for step, errs := range stepErrs {
		named[validate.Steps[step].Name] = errs
	}
	return ValidationResponse{Steps: named}
}

func catalogResponse(cfg *config.Config) CatalogResponse {
	return CatalogResponse{
		Countries:          cfg.Catalog.Countries,
		AnnouncementTypes:  cfg.Catalog.AnnouncementTypes,
		ExpenseTypes:       cfg.Catalog.ExpenseTypes,
		InterviewDocuments: cfg.Catalog.InterviewDocuments,
		DefaultCurrency:    cfg.Defaults.Currency,
		CutoutMaxSizeBytes: cfg.Cutout.MaxSizeBytes,
		CutoutMimeTypes:    cfg.Cutout.MimeTypes,
	}
}

func publishResponse(p repo.Posting) PublishResponse {
	return PublishResponse{
		PostingID:   p.ID,
		DraftID:     p.DraftID,
		Title:       p.Title,
		Kind:        p.Kind,
		PublishedAt: p.PublishedAt,
	}
}

func postingResponse(p repo.Posting, payload publish.Payload) PostingResponse {
	return PostingResponse{PublishResponse: publishResponse(p), Payload: payload}
}

func positionFromRequest(req PositionRequest) domain.Position {
	return domain.Position{
		Title:           req.Title,
		MaleVacancies:   req.MaleVacancies,
		FemaleVacancies: req.FemaleVacancies,
		MonthlySalary:   req.MonthlySalary,
		Currency:        req.Currency,
		Overrides:       req.Overrides,
		Notes:           req.Notes,
	}
}

func expenseFromRequest(req ExpenseRequest) domain.Expense {
	return domain.Expense{
		Type:     domain.ExpenseType(req.Type),
		Payer:    domain.ExpensePayer(req.Payer),
		IsFree:   req.IsFree,
		Amount:   req.Amount,
		Currency: req.Currency,
		Notes:    req.Notes,
	}
}

func interviewFromRequest(req InterviewRequest) domain.Interview {
	return domain.Interview{
		Date:              req.Date,
		Time:              req.Time,
		Location:          req.Location,
		ContactPerson:     req.ContactPerson,
		RequiredDocuments: req.RequiredDocuments,
		Notes:             req.Notes,
	}
}

func postingFromRequest(req PostingDetailsRequest) domain.PostingDetails {
	return domain.PostingDetails{
		Title:            req.Title,
		Country:          req.Country,
		City:             req.City,
		LicenseNumber:    req.LicenseNumber,
		ChalaniNumber:    req.ChalaniNumber,
		ApprovalDate:     req.ApprovalDate,
		PostingDate:      req.PostingDate,
		AnnouncementType: req.AnnouncementType,
		Notes:            req.Notes,
	}
}

func contractFromRequest(req ContractRequest) domain.ContractTerms {
	return domain.ContractTerms{
		PeriodYears:     req.PeriodYears,
		Renewable:       req.Renewable,
		HoursPerDay:     req.HoursPerDay,
		DaysPerWeek:     req.DaysPerWeek,
		Overtime:        domain.OvertimePolicy(req.Overtime),
		WeeklyOffDays:   req.WeeklyOffDays,
		AnnualLeaveDays: req.AnnualLeaveDays,
		Food:            domain.Provision(req.Food),
		Accommodation:   domain.Provision(req.Accommodation),
		Transport:       domain.Provision(req.Transport),
	}
}

func tagsFromRequest(req TagsRequest) domain.TagRequirements {
	return domain.TagRequirements{
		Skills:    req.Skills,
		Education: req.Education,
		Experience: domain.Experience{
			MinYears:       req.MinYears,
			PreferredYears: req.PreferredYears,
			Domains:        req.Domains,
		},
		TitleIDs:   req.TitleIDs,
		TitleNames: req.TitleNames,
	}
}

func bulkEntryFromRequest(req BulkEntryRequest) domain.BulkEntry {
	return domain.BulkEntry{
		Country:  req.Country,
		JobCount: req.JobCount,
		Position: req.Position,
	}
}
