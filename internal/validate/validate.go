package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"postline/internal/domain"
)

// StepID indexes the single-flow steps in wizard order.
type StepID int

const (
	StepPostingDetails StepID = iota
	StepContract
	StepPositions
	StepTags
	StepExpenses
	StepCutout
	StepInterview
	StepReview
)

func (s StepID) String() string {
	if int(s) >= 0 && int(s) < len(Steps) {
		return Steps[s].Name
	}
	return fmt.Sprintf("step-%d", int(s))
}

// Step describes one entry of the single-flow registry.
type Step struct {
	ID   StepID
	Name string
}

// Steps is the ordered single-flow registry. The bulk flow has a single
// screen and is checked by CheckBulk instead.
var Steps = []Step{
	{StepPostingDetails, "posting_details"},
	{StepContract, "contract"},
	{StepPositions, "positions"},
	{StepTags, "tags"},
	{StepExpenses, "expenses"},
	{StepCutout, "cutout"},
	{StepInterview, "interview"},
	{StepReview, "review"},
}

// Errors maps a field key to a message. Keys for repeatable entries embed
// the entry's local id, e.g. "position.3.salary". An empty map means the
// step passes; validators never return an error value.
type Errors map[string]string

func (e Errors) add(key, msg string) { e[key] = msg }

// Check runs the validator for one step against a draft snapshot.
// Pure and deterministic.
func Check(step StepID, d domain.Draft) Errors {
	switch step {
	case StepPostingDetails:
		return checkPosting(d.Posting)
	case StepContract:
		return checkContract(d.Contract)
	case StepPositions:
		return checkPositions(d.Positions)
	case StepTags:
		return checkTags(d.Tags)
	case StepExpenses:
		return checkExpenses("expense", d.Expenses)
	case StepCutout:
		return checkCutout(d.Cutout)
	case StepInterview:
		return checkInterview(d.Interview)
	case StepReview:
		return checkReview(d)
	}
	return Errors{}
}

// CheckAll runs the validators for steps 0..6 and returns the non-empty
// results keyed by step. Used by publish and by the review aggregation.
func CheckAll(d domain.Draft) map[StepID]Errors {
	res := map[StepID]Errors{}
	for step := StepPostingDetails; step <= StepInterview; step++ {
		if errs := Check(step, d); len(errs) > 0 {
			res[step] = errs
		}
	}
	return res
}

// CheckBulk validates the one-screen bulk flow.
func CheckBulk(d domain.Draft) Errors {
	errs := Errors{}
	if d.Bulk == nil {
		errs.add("bulk", "bulk details are required")
		return errs
	}
	if strings.TrimSpace(d.Bulk.Title) == "" {
		errs.add("title", "title is required")
	}
	if len(d.Bulk.Entries) == 0 {
		errs.add("entries", "at least one entry is required")
	}
	for _, e := range d.Bulk.Entries {
		prefix := fmt.Sprintf("entry.%d.", e.LocalID)
		if strings.TrimSpace(e.Country) == "" {
			errs.add(prefix+"country", "country is required")
		}
		if e.JobCount == nil {
			errs.add(prefix+"job_count", "job count is required")
		} else if *e.JobCount <= 0 {
			errs.add(prefix+"job_count", "job count must be a positive number")
		}
	}
	return errs
}

func checkPosting(p domain.PostingDetails) Errors {
	errs := Errors{}
	requireString(errs, "country", p.Country, "country is required")
	requireString(errs, "city", p.City, "city is required")
	requireString(errs, "license_number", p.LicenseNumber, "license number is required")
	requireString(errs, "chalani_number", p.ChalaniNumber, "chalani number is required")
	if p.ApprovalDate.Value() == "" {
		errs.add("approval_date", "approval date is required")
	}
	if p.PostingDate.Value() == "" {
		errs.add("posting_date", "posting date is required")
	}
	requireString(errs, "announcement_type", p.AnnouncementType, "announcement type is required")
	return errs
}

func checkContract(c domain.ContractTerms) Errors {
	errs := Errors{}
	requireRange(errs, "period_years", c.PeriodYears, 1, 0, "contract period must be at least 1 year")
	requireRange(errs, "hours_per_day", c.HoursPerDay, 1, 16, "working hours must be between 1 and 16 per day")
	requireRange(errs, "days_per_week", c.DaysPerWeek, 1, 7, "working days must be between 1 and 7 per week")
	requireRange(errs, "weekly_off_days", c.WeeklyOffDays, 0, 7, "weekly off days must be between 0 and 7")
	requireRange(errs, "annual_leave_days", c.AnnualLeaveDays, 0, 0, "annual leave days cannot be negative")
	if c.Overtime == "" {
		errs.add("overtime", "overtime policy is required")
	}
	if c.Food == "" {
		errs.add("food", "food provision is required")
	}
	if c.Accommodation == "" {
		errs.add("accommodation", "accommodation provision is required")
	}
	if c.Transport == "" {
		errs.add("transport", "transport provision is required")
	}
	return errs
}

func checkPositions(positions []domain.Position) Errors {
	errs := Errors{}
	if len(positions) == 0 {
		errs.add("positions", "at least one position is required")
		return errs
	}
	for _, p := range positions {
		prefix := fmt.Sprintf("position.%d.", p.LocalID)
		requireString(errs, prefix+"title", p.Title, "position title is required")
		// nil counts are treated as not-yet-typed, never as an invalid zero
		if p.MaleVacancies != nil && *p.MaleVacancies < 0 {
			errs.add(prefix+"male_vacancies", "vacancy count cannot be negative")
		}
		if p.FemaleVacancies != nil && *p.FemaleVacancies < 0 {
			errs.add(prefix+"female_vacancies", "vacancy count cannot be negative")
		}
		if p.TotalVacancies() <= 0 {
			errs.add(prefix+"vacancies", "total vacancies must be greater than zero")
		}
		if p.MonthlySalary == nil {
			errs.add(prefix+"salary", "monthly salary is required")
		} else if *p.MonthlySalary <= 0 {
			errs.add(prefix+"salary", "monthly salary must be greater than zero")
		}
		requireString(errs, prefix+"currency", p.Currency, "salary currency is required")
	}
	return errs
}

func checkTags(t domain.TagRequirements) Errors {
	errs := Errors{}
	if len(t.Skills) == 0 {
		errs.add("skills", "at least one skill is required")
	}
	if len(t.Education) == 0 {
		errs.add("education", "at least one education requirement is required")
	}
	if t.Experience.MinYears == nil {
		errs.add("experience.min_years", "minimum experience is required")
	} else if *t.Experience.MinYears < 0 {
		errs.add("experience.min_years", "minimum experience cannot be negative")
	}
	if t.Experience.PreferredYears != nil && t.Experience.MinYears != nil &&
		*t.Experience.PreferredYears < *t.Experience.MinYears {
		errs.add("experience.preferred_years", "preferred experience cannot be below the minimum")
	}
	if len(t.Experience.Domains) == 0 {
		errs.add("experience.domains", "at least one experience domain is required")
	}
	if len(t.TitleIDs) == 0 {
		errs.add("titles", "at least one canonical title is required")
	} else if len(t.TitleIDs) != len(t.TitleNames) {
		errs.add("titles", "canonical title ids and names are out of sync")
	}
	return errs
}

// checkExpenses applies the shared expense sub-rule; the keyPrefix lets the
// interview step reuse it under its own namespace.
func checkExpenses(keyPrefix string, expenses []domain.Expense) Errors {
	errs := Errors{}
	for _, e := range expenses {
		prefix := fmt.Sprintf("%s.%d.", keyPrefix, e.LocalID)
		if e.Type == "" {
			errs.add(prefix+"type", "expense type is required")
		}
		if e.Payer == "" {
			errs.add(prefix+"payer", "expense payer is required")
		}
		if !e.IsFree {
			if e.Amount == nil || *e.Amount <= 0 {
				errs.add(prefix+"amount", "amount must be greater than zero")
			}
			requireString(errs, prefix+"currency", e.Currency, "currency is required")
		}
	}
	return errs
}

func checkCutout(c *domain.Cutout) Errors {
	errs := Errors{}
	if !c.HasContent() {
		errs.add("cutout", "an advertisement image is required")
	}
	return errs
}

var timePattern = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)(?:\s?([AaPp][Mm]))?$`)

// ValidInterviewTime reports whether t matches HH:MM with an optional
// AM/PM suffix. With a suffix the hour is 1..12, without it 0..23.
func ValidInterviewTime(t string) bool {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(t))
	if m == nil {
		return false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	if m[3] != "" {
		return hour >= 1 && hour <= 12
	}
	return hour >= 0 && hour <= 23
}

func checkInterview(iv *domain.Interview) Errors {
	errs := Errors{}
	if iv == nil {
		return errs
	}
	if iv.Time != "" && !ValidInterviewTime(iv.Time) {
		errs.add("interview.time", "time must look like HH:MM, optionally with AM/PM")
	}
	for key, msg := range checkExpenses("interview.expense", iv.Expenses) {
		errs.add(key, msg)
	}
	return errs
}

// checkReview has no rules of its own; it aggregates the prior steps with
// step-qualified keys so a single map can drive the review screen.
func checkReview(d domain.Draft) Errors {
	errs := Errors{}
	for step, stepErrs := range CheckAll(d) {
		for key, msg := range stepErrs {
			errs.add(step.String()+"."+key, msg)
		}
	}
	return errs
}

func requireString(errs Errors, key, value, msg string) {
	if strings.TrimSpace(value) == "" {
		errs.add(key, msg)
	}
}

// requireRange checks a bounded optional int. max <= min means "no upper
// bound". A nil value is reported as required, not as out of range.
func requireRange(errs Errors, key string, v *int, min, max int, msg string) {
	if v == nil {
		errs.add(key, strings.ReplaceAll(key, "_", " ")+" is required")
		return
	}
	if *v < min {
		errs.add(key, msg)
		return
	}
	if max > min && *v > max {
		errs.add(key, msg)
	}
}
