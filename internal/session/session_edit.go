package session

import (
	"fmt"

	"postline/internal/domain"
)

// ApplyPosting replaces the administrative step's fields.
func (c *Controller) ApplyPosting(p domain.PostingDetails) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Posting = p
	return nil
}

// ApplyContract replaces the contract step's fields.
func (c *Controller) ApplyContract(t domain.ContractTerms) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Contract = t
	return nil
}

// ApplyTags replaces the tags step's fields. The canonical title lists
// must stay parallel; a mismatch is rejected before anything changes.
func (c *Controller) ApplyTags(t domain.TagRequirements) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if len(t.TitleIDs) != len(t.TitleNames) {
		return fmt.Errorf("canonical title ids and names must have the same length")
	}
	c.draft.Tags = t
	return nil
}

// AddCanonicalTitle appends a canonical title reference to both parallel lists.
func (c *Controller) AddCanonicalTitle(id, name string) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Tags.TitleIDs = append(c.draft.Tags.TitleIDs, id)
	c.draft.Tags.TitleNames = append(c.draft.Tags.TitleNames, name)
	return nil
}

// RemoveCanonicalTitle drops a canonical title from both lists by id.
func (c *Controller) RemoveCanonicalTitle(id string) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	for i, tid := range c.draft.Tags.TitleIDs {
		if tid == id {
			c.draft.Tags.TitleIDs = append(c.draft.Tags.TitleIDs[:i], c.draft.Tags.TitleIDs[i+1:]...)
			c.draft.Tags.TitleNames = append(c.draft.Tags.TitleNames[:i], c.draft.Tags.TitleNames[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// AddPosition appends a position under a freshly minted local id and
// returns the id. Ids are never recycled within a session.
func (c *Controller) AddPosition(p domain.Position) (int, error) {
	if c.frozen() {
		return 0, ErrSessionClosed
	}
	p.LocalID = c.draft.NextLocalID()
	if p.Currency == "" {
		p.Currency = c.cfg.DefaultCurrency
	}
	c.draft.Positions = append(c.draft.Positions, p)
	return p.LocalID, nil
}

// UpdatePosition replaces the position with the matching local id.
func (c *Controller) UpdatePosition(id int, p domain.Position) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	for i := range c.draft.Positions {
		if c.draft.Positions[i].LocalID == id {
			p.LocalID = id
			c.draft.Positions[i] = p
			return nil
		}
	}
	return ErrNotFound
}

// RemovePosition drops a position by local id. Removing the last one is
// permitted; the gap surfaces at the next Next or Publish, not here.
func (c *Controller) RemovePosition(id int) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	for i := range c.draft.Positions {
		if c.draft.Positions[i].LocalID == id {
			c.draft.Positions = append(c.draft.Positions[:i], c.draft.Positions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// normalizeExpense applies the is_free coupling atomically: a free expense
// carries no amount and falls back to the default currency, in the same
// update, so no observer sees is_free=true with a positive amount.
func (c *Controller) normalizeExpense(e domain.Expense) domain.Expense {
	if e.IsFree {
		e.Amount = nil
		e.Currency = c.cfg.DefaultCurrency
	} else if e.Currency == "" {
		e.Currency = c.cfg.DefaultCurrency
	}
	return e
}

// AddExpense appends an expense under a fresh local id and returns the id.
func (c *Controller) AddExpense(e domain.Expense) (int, error) {
	if c.frozen() {
		return 0, ErrSessionClosed
	}
	e = c.normalizeExpense(e)
	e.LocalID = c.draft.NextLocalID()
	c.draft.Expenses = append(c.draft.Expenses, e)
	return e.LocalID, nil
}

// UpdateExpense replaces the expense with the matching local id.
func (c *Controller) UpdateExpense(id int, e domain.Expense) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	for i := range c.draft.Expenses {
		if c.draft.Expenses[i].LocalID == id {
			e = c.normalizeExpense(e)
			e.LocalID = id
			c.draft.Expenses[i] = e
			return nil
		}
	}
	return ErrNotFound
}

// RemoveExpense drops an expense by local id.
func (c *Controller) RemoveExpense(id int) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	for i := range c.draft.Expenses {
		if c.draft.Expenses[i].LocalID == id {
			c.draft.Expenses = append(c.draft.Expenses[:i], c.draft.Expenses[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ApplyInterview sets the optional interview step's scalar fields, marking
// the step as touched. Interview expenses keep their own mutators so local
// ids survive.
func (c *Controller) ApplyInterview(iv domain.Interview) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	existing := c.draft.Interview
	if existing == nil {
		c.draft.Interview = &iv
		return nil
	}
	iv.Expenses = existing.Expenses
	*existing = iv
	return nil
}

// ClearInterview resets the step to untouched, dropping its expenses.
func (c *Controller) ClearInterview() error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Interview = nil
	return nil
}

func (c *Controller) touchInterview() *domain.Interview {
	if c.draft.Interview == nil {
		c.draft.Interview = &domain.Interview{}
	}
	return c.draft.Interview
}

// AddInterviewExpense appends an interview expense under a fresh local id.
func (c *Controller) AddInterviewExpense(e domain.Expense) (int, error) {
	if c.frozen() {
		return 0, ErrSessionClosed
	}
	iv := c.touchInterview()
	e = c.normalizeExpense(e)
	e.LocalID = c.draft.NextLocalID()
	iv.Expenses = append(iv.Expenses, e)
	return e.LocalID, nil
}

// UpdateInterviewExpense replaces an interview expense by local id.
func (c *Controller) UpdateInterviewExpense(id int, e domain.Expense) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Interview == nil {
		return ErrNotFound
	}
	for i := range c.draft.Interview.Expenses {
		if c.draft.Interview.Expenses[i].LocalID == id {
			e = c.normalizeExpense(e)
			e.LocalID = id
			c.draft.Interview.Expenses[i] = e
			return nil
		}
	}
	return ErrNotFound
}

// RemoveInterviewExpense drops an interview expense by local id.
func (c *Controller) RemoveInterviewExpense(id int) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Interview == nil {
		return ErrNotFound
	}
	for i := range c.draft.Interview.Expenses {
		if c.draft.Interview.Expenses[i].LocalID == id {
			c.draft.Interview.Expenses = append(c.draft.Interview.Expenses[:i], c.draft.Interview.Expenses[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// SetBulkInfo sets the bulk variant's title and company.
func (c *Controller) SetBulkInfo(title, company string) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Bulk == nil {
		c.draft.Bulk = &domain.BulkPosting{}
	}
	c.draft.Bulk.Title = title
	c.draft.Bulk.Company = company
	return nil
}

// AddBulkEntry appends a bulk entry under a fresh local id.
func (c *Controller) AddBulkEntry(e domain.BulkEntry) (int, error) {
	if c.frozen() {
		return 0, ErrSessionClosed
	}
	if c.draft.Bulk == nil {
		c.draft.Bulk = &domain.BulkPosting{}
	}
	e.LocalID = c.draft.NextLocalID()
	c.draft.Bulk.Entries = append(c.draft.Bulk.Entries, e)
	return e.LocalID, nil
}

// UpdateBulkEntry replaces a bulk entry by local id.
func (c *Controller) UpdateBulkEntry(id int, e domain.BulkEntry) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Bulk == nil {
		return ErrNotFound
	}
	for i := range c.draft.Bulk.Entries {
		if c.draft.Bulk.Entries[i].LocalID == id {
			e.LocalID = id
			c.draft.Bulk.Entries[i] = e
			return nil
		}
	}
	return ErrNotFound
}

// RemoveBulkEntry drops a bulk entry by local id.
func (c *Controller) RemoveBulkEntry(id int) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Bulk == nil {
		return ErrNotFound
	}
	for i := range c.draft.Bulk.Entries {
		if c.draft.Bulk.Entries[i].LocalID == id {
			c.draft.Bulk.Entries = append(c.draft.Bulk.Entries[:i], c.draft.Bulk.Entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// AttachCutout accepts a selected image's metadata after checking the MIME
// kind and size limits. The local path is what makes an attached cutout
// count as content, so it is mandatory here; a cutout sourced from an
// upload goes through MarkCutoutUploaded instead. Rejections are
// field-level and leave the draft untouched.
func (c *Controller) AttachCutout(fileName, mimeType, localPath string, size int64) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if localPath == "" {
		return FileError{Field: "cutout", Message: "local path is required"}
	}
	allowed := false
	for _, m := range c.cfg.CutoutMimeTypes {
		if m == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return FileError{Field: "cutout", Message: fmt.Sprintf("unsupported file type %s", mimeType)}
	}
	if c.cfg.MaxCutoutBytes > 0 && size > c.cfg.MaxCutoutBytes {
		return FileError{Field: "cutout", Message: fmt.Sprintf("file exceeds the %d byte limit", c.cfg.MaxCutoutBytes)}
	}
	c.draft.Cutout = &domain.Cutout{
		FileName:  fileName,
		FileSize:  size,
		MimeType:  mimeType,
		LocalPath: localPath,
	}
	return nil
}

// MarkCutoutUploaded records the uploaded URL once the transport finished.
func (c *Controller) MarkCutoutUploaded(url string) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.draft.Cutout == nil {
		c.draft.Cutout = &domain.Cutout{}
	}
	c.draft.Cutout.UploadedURL = url
	c.draft.Cutout.IsUploaded = true
	return nil
}

// ClearCutout removes the attached image.
func (c *Controller) ClearCutout() error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Cutout = nil
	return nil
}

// MarkReview records whether the user confirmed the review step.
func (c *Controller) MarkReview(done bool) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Review.IsComplete = done
	return nil
}

// MarkSubmit records whether the user confirmed the final submission.
func (c *Controller) MarkSubmit(done bool) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	c.draft.Submit.IsComplete = done
	return nil
}
