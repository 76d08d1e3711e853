package domain

// Flow is one of the two top-level creation modes.
type Flow string

const (
	FlowSingle Flow = "single"
	FlowBulk   Flow = "bulk"
)

// Calendar identifies which date system a DualDate is edited in.
type Calendar string

const (
	CalendarAD Calendar = "ad"
	CalendarBS Calendar = "bs"
)

// DualDate carries the same date in both calendar systems.
// Only the active system's value is required to be filled.
type DualDate struct {
	AD     string   `json:"ad,omitempty"`
	BS     string   `json:"bs,omitempty"`
	Active Calendar `json:"active,omitempty" enum:"ad,bs"`
}

// Value returns the date in the active system.
func (d DualDate) Value() string {
	if d.Active == CalendarBS {
		return d.BS
	}
	return d.AD
}

func (d DualDate) IsZero() bool {
	return d.AD == "" && d.BS == ""
}

// Provision describes how food, accommodation or transport is covered.
type Provision string

const (
	ProvisionFree        Provision = "free"
	ProvisionPaid        Provision = "paid"
	ProvisionNotProvided Provision = "not_provided"
)

// OvertimePolicy applies to hours beyond the contracted schedule.
type OvertimePolicy string

const (
	OvertimePaid     OvertimePolicy = "paid"
	OvertimeUnpaid   OvertimePolicy = "unpaid"
	OvertimeAsPerLaw OvertimePolicy = "as_per_law"
)

// ExpenseType classifies who-pays-what line items on a posting.
type ExpenseType string

const (
	ExpenseVisa          ExpenseType = "visa"
	ExpenseAirTicket     ExpenseType = "air_ticket"
	ExpenseMedical       ExpenseType = "medical"
	ExpenseInsurance     ExpenseType = "insurance"
	ExpenseOrientation   ExpenseType = "orientation"
	ExpenseWelfareFund   ExpenseType = "welfare_fund"
	ExpenseServiceCharge ExpenseType = "service_charge"
	ExpenseOther         ExpenseType = "other"
)

// ExpensePayer identifies who covers an expense.
type ExpensePayer string

const (
	PayerCompany ExpensePayer = "company"
	PayerWorker  ExpensePayer = "worker"
	PayerShared  ExpensePayer = "shared"
)

// PostingDetails is the administrative step of a draft.
type PostingDetails struct {
	Title            string   `json:"title,omitempty"`
	Country          string   `json:"country,omitempty"`
	City             string   `json:"city,omitempty"`
	LicenseNumber    string   `json:"license_number,omitempty"`
	ChalaniNumber    string   `json:"chalani_number,omitempty"`
	ApprovalDate     DualDate `json:"approval_date"`
	PostingDate      DualDate `json:"posting_date"`
	AnnouncementType string   `json:"announcement_type,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// ContractTerms is the contract step of a draft. Numeric fields are nil
// until the user has typed a value, so a cleared input never reads as zero.
type ContractTerms struct {
	PeriodYears     *int           `json:"period_years,omitempty"`
	Renewable       bool           `json:"renewable,omitempty"`
	HoursPerDay     *int           `json:"hours_per_day,omitempty"`
	DaysPerWeek     *int           `json:"days_per_week,omitempty"`
	Overtime        OvertimePolicy `json:"overtime,omitempty" enum:"paid,unpaid,as_per_law"`
	WeeklyOffDays   *int           `json:"weekly_off_days,omitempty"`
	AnnualLeaveDays *int           `json:"annual_leave_days,omitempty"`
	Food            Provision      `json:"food,omitempty" enum:"free,paid,not_provided"`
	Accommodation   Provision      `json:"accommodation,omitempty" enum:"free,paid,not_provided"`
	Transport       Provision      `json:"transport,omitempty" enum:"free,paid,not_provided"`
}

// PositionOverrides are per-position replacements for contract-level
// scheduling and provision fields. nil means "no override", distinct
// from any real value, including one equal to the contract default.
type PositionOverrides struct {
	HoursPerDay   *int            `json:"hours_per_day,omitempty"`
	DaysPerWeek   *int            `json:"days_per_week,omitempty"`
	Overtime      *OvertimePolicy `json:"overtime,omitempty"`
	Food          *Provision      `json:"food,omitempty"`
	Accommodation *Provision      `json:"accommodation,omitempty"`
	Transport     *Provision      `json:"transport,omitempty"`
}

func (o PositionOverrides) IsZero() bool {
	return o.HoursPerDay == nil && o.DaysPerWeek == nil && o.Overtime == nil &&
		o.Food == nil && o.Accommodation == nil && o.Transport == nil
}

// Position is one vacancy line in a draft.
type Position struct {
	LocalID         int               `json:"local_id"`
	Title           string            `json:"title,omitempty"`
	MaleVacancies   *int              `json:"male_vacancies,omitempty"`
	FemaleVacancies *int              `json:"female_vacancies,omitempty"`
	MonthlySalary   *float64          `json:"monthly_salary,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	Overrides       PositionOverrides `json:"overrides"`
	Notes           string            `json:"notes,omitempty"`
}

// TotalVacancies sums the male and female counts, treating unset as zero.
func (p Position) TotalVacancies() int {
	total := 0
	if p.MaleVacancies != nil {
		total += *p.MaleVacancies
	}
	if p.FemaleVacancies != nil {
		total += *p.FemaleVacancies
	}
	return total
}

// Experience is the minimum-experience requirement of a posting.
type Experience struct {
	MinYears       *int     `json:"min_years,omitempty"`
	PreferredYears *int     `json:"preferred_years,omitempty"`
	Domains        []string `json:"domains,omitempty"`
}

// TagRequirements is the tags step: skills, education, experience and
// canonical title references. TitleIDs and TitleNames are parallel lists,
// same length, same order.
type TagRequirements struct {
	Skills     []string   `json:"skills,omitempty"`
	Education  []string   `json:"education,omitempty"`
	Experience Experience `json:"experience"`
	TitleIDs   []string   `json:"title_ids,omitempty"`
	TitleNames []string   `json:"title_names,omitempty"`
}

// Expense is one cost line. Amount and Currency are meaningful only when
// IsFree is false; flipping IsFree to true clears both in the same update.
type Expense struct {
	LocalID  int          `json:"local_id"`
	Type     ExpenseType  `json:"type,omitempty"`
	Payer    ExpensePayer `json:"payer,omitempty" enum:"company,worker,shared"`
	IsFree   bool         `json:"is_free,omitempty"`
	Amount   *float64     `json:"amount,omitempty"`
	Currency string       `json:"currency,omitempty"`
	Notes    string       `json:"notes,omitempty"`
}

// Cutout is the advertisement image attached to a draft. At most one exists.
type Cutout struct {
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	LocalPath   string `json:"local_path,omitempty"`
	UploadedURL string `json:"uploaded_url,omitempty"`
	IsUploaded  bool   `json:"is_uploaded,omitempty"`
}

// HasContent reports whether the cutout has a local file or an uploaded URL.
func (c *Cutout) HasContent() bool {
	return c != nil && (c.LocalPath != "" || c.UploadedURL != "")
}

// Interview holds the fully optional interview step. A nil *Interview on
// the draft means the step was never touched and is skipped by validation.
type Interview struct {
	Date              DualDate  `json:"date"`
	Time              string    `json:"time,omitempty"`
	Location          string    `json:"location,omitempty"`
	ContactPerson     string    `json:"contact_person,omitempty"`
	RequiredDocuments []string  `json:"required_documents,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Expenses          []Expense `json:"expenses,omitempty"`
}

// BulkEntry is one (country, job count, position) tuple of a bulk draft.
type BulkEntry struct {
	LocalID  int    `json:"local_id"`
	Country  string `json:"country,omitempty"`
	JobCount *int   `json:"job_count,omitempty"`
	Position string `json:"position,omitempty"`
}

// BulkPosting is the bulk variant's exclusive field set.
type BulkPosting struct {
	Title   string      `json:"title,omitempty"`
	Company string      `json:"company,omitempty"`
	Entries []BulkEntry `json:"entries,omitempty"`
}

// TotalJobs sums job counts across entries.
func (b BulkPosting) TotalJobs() int {
	total := 0
	for _, e := range b.Entries {
		if e.JobCount != nil {
			total += *e.JobCount
		}
	}
	return total
}

// Countries returns the distinct entry countries in first-appearance order.
func (b BulkPosting) Countries() []string {
	seen := map[string]bool{}
	var res []string
	for _, e := range b.Entries {
		if e.Country == "" || seen[e.Country] {
			continue
		}
		seen[e.Country] = true
		res = append(res, e.Country)
	}
	return res
}

// Marker is a completion flag set by an external collaborator, never by
// the wizard itself.
type Marker struct {
	IsComplete bool `json:"is_complete,omitempty"`
}

// Draft is the persisted job-posting draft. StepHint is advisory only:
// status display always recomputes from content (see progress.Evaluate).
type Draft struct {
	ID        string `json:"id"`
	Kind      Flow   `json:"kind" enum:"single,bulk"`
	IsPartial bool   `json:"is_partial,omitempty"`
	Published bool   `json:"published,omitempty"`
	StepHint  int    `json:"step_hint,omitempty"`
	LocalSeq  int    `json:"local_seq,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt string `json:"updated_at,omitempty" format:"date-time"`

	Posting   PostingDetails  `json:"posting"`
	Contract  ContractTerms   `json:"contract"`
	Positions []Position      `json:"positions,omitempty"`
	Tags      TagRequirements `json:"tags"`
	Expenses  []Expense       `json:"expenses,omitempty"`
	Cutout    *Cutout         `json:"cutout,omitempty"`
	Interview *Interview      `json:"interview,omitempty"`

	Bulk *BulkPosting `json:"bulk,omitempty"`

	Review Marker `json:"review"`
	Submit Marker `json:"submit"`
}

// NextLocalID mints a collection-local id. Ids are never recycled within
// a draft: the sequence only moves forward, even after removals.
func (d *Draft) NextLocalID() int {
	d.LocalSeq++
	return d.LocalSeq
}

// PositionByID returns the position with the given local id.
func (d *Draft) PositionByID(id int) (Position, bool) {
	for _, p := range d.Positions {
		if p.LocalID == id {
			return p, true
		}
	}
	return Position{}, false
}

// ExpenseByID returns the expense with the given local id.
func (d *Draft) ExpenseByID(id int) (Expense, bool) {
	for _, e := range d.Expenses {
		if e.LocalID == id {
			return e, true
		}
	}
	return Expense{}, false
}

func IntPtr(v int) *int             { return &v }
func Float64Ptr(v float64) *float64 { return &v }
func StringPtr(v string) *string    { return &v }
