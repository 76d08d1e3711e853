package domain

// Clone returns a deep copy of the draft. Sessions hand clones to
// collaborators so a validator or evaluator never observes a collection
// mid-mutation.
func (d Draft) Clone() Draft {
	out := d
	out.Contract = cloneContract(d.Contract)
	out.Positions = clonePositions(d.Positions)
	out.Tags = cloneTags(d.Tags)
	out.Expenses = cloneExpenses(d.Expenses)
	if d.Cutout != nil {
		c := *d.Cutout
		out.Cutout = &c
	}
	if d.Interview != nil {
		iv := *d.Interview
		iv.RequiredDocuments = append([]string(nil), d.Interview.RequiredDocuments...)
		iv.Expenses = cloneExpenses(d.Interview.Expenses)
		out.Interview = &iv
	}
	if d.Bulk != nil {
		b := *d.Bulk
		b.Entries = make([]BulkEntry, len(d.Bulk.Entries))
		for i, e := range d.Bulk.Entries {
			b.Entries[i] = e
			b.Entries[i].JobCount = cloneIntPtr(e.JobCount)
		}
		out.Bulk = &b
	}
	return out
}

func cloneContract(c ContractTerms) ContractTerms {
	c.PeriodYears = cloneIntPtr(c.PeriodYears)
	c.HoursPerDay = cloneIntPtr(c.HoursPerDay)
	c.DaysPerWeek = cloneIntPtr(c.DaysPerWeek)
	c.WeeklyOffDays = cloneIntPtr(c.WeeklyOffDays)
	c.AnnualLeaveDays = cloneIntPtr(c.AnnualLeaveDays)
	return c
}

func clonePositions(in []Position) []Position {
	if in == nil {
		return nil
	}
	out := make([]Position, len(in))
	for i, p := range in {
		p.MaleVacancies = cloneIntPtr(p.MaleVacancies)
		p.FemaleVacancies = cloneIntPtr(p.FemaleVacancies)
		p.MonthlySalary = cloneFloatPtr(p.MonthlySalary)
		p.Overrides = cloneOverrides(p.Overrides)
		out[i] = p
	}
	return out
}

func cloneOverrides(o PositionOverrides) PositionOverrides {
	o.HoursPerDay = cloneIntPtr(o.HoursPerDay)
	o.DaysPerWeek = cloneIntPtr(o.DaysPerWeek)
	if o.Overtime != nil {
		v := *o.Overtime
		o.Overtime = &v
	}
	o.Food = cloneProvisionPtr(o.Food)
	o.Accommodation = cloneProvisionPtr(o.Accommodation)
	o.Transport = cloneProvisionPtr(o.Transport)
	return o
}

func cloneTags(t TagRequirements) TagRequirements {
	t.Skills = append([]string(nil), t.Skills...)
	t.Education = append([]string(nil), t.Education...)
	t.TitleIDs = append([]string(nil), t.TitleIDs...)
	t.TitleNames = append([]string(nil), t.TitleNames...)
	t.Experience.MinYears = cloneIntPtr(t.Experience.MinYears)
	t.Experience.PreferredYears = cloneIntPtr(t.Experience.PreferredYears)
	t.Experience.Domains = append([]string(nil), t.Experience.Domains...)
	return t
}

func cloneExpenses(in []Expense) []Expense {
	if in == nil {
		return nil
	}
	out := make([]Expense, len(in))
	for i, e := range in {
		e.Amount = cloneFloatPtr(e.Amount)
		out[i] = e
	}
	return out
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneProvisionPtr(v *Provision) *Provision {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
