package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"postline/internal/domain"
	"postline/internal/publish"
	"postline/internal/validate"
)

// Store is the persistence boundary. The controller calls it only at
// session edges (save-and-exit, publish); navigation never persists.
type Store interface {
	Create(ctx context.Context, d domain.Draft) error
	Update(ctx context.Context, d domain.Draft) error
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id string, payload publish.Payload) error
	List(ctx context.Context) ([]domain.Draft, error)
}

// CountryProvider supplies the set of valid country names.
type CountryProvider interface {
	Countries(ctx context.Context) ([]string, error)
}

// State is the controller's coarse position in the flow graph.
type State int

const (
	StateFlowSelection State = iota
	StateSingle
	StateBulk
	StateTerminal
)

var (
	// ErrSessionClosed is returned by mutations after publish succeeded or
	// the session was otherwise frozen.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotFound is returned when a local id matches no collection entry.
	ErrNotFound = errors.New("no entry with that id")
)

// FileError is a field-level file-acceptance failure. It never touches the
// rest of the draft.
type FileError struct {
	Field   string
	Message string
}

func (e FileError) Error() string { return e.Message }

// Config assembles a controller. Source seeds the session from an existing
// record; ExpandBulk turns a bulk source into a fresh single draft seeded
// from its first entry.
type Config struct {
	Store           Store
	Countries       CountryProvider
	DefaultCurrency string
	MaxCutoutBytes  int64
	CutoutMimeTypes []string
	Source          *domain.Draft
	ResumeHint      int
	ExpandBulk      bool
	Now             func() time.Time
	NewID           func() string
}

// Controller owns one draft for the duration of an editing session. It is
// not safe for concurrent use; exactly one controller is active per open
// draft.
type Controller struct {
	cfg    Config
	draft  domain.Draft
	state  State
	step   validate.StepID
	exists bool

	countries            []string
	countriesUnavailable bool
}

// PublishResult reports the outcome of a publish attempt. When validation
// fails, FirstFailing is the step the session jumped back to and
// ErrorCount the aggregated number of failing fields.
type PublishResult struct {
	OK           bool
	FirstFailing validate.StepID
	ErrorCount   int
	StepErrors   map[validate.StepID]validate.Errors
}

// New builds a session. The country list is loaded up front; a provider
// failure degrades to an empty list with a non-fatal flag rather than
// blocking the session.
func New(ctx context.Context, cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	c := &Controller{cfg: cfg, state: StateFlowSelection}

	if cfg.Countries != nil {
		list, err := cfg.Countries.Countries(ctx)
		if err != nil {
			c.countriesUnavailable = true
		} else {
			c.countries = list
		}
	}

	switch {
	case cfg.Source == nil:
		c.draft = domain.Draft{ID: cfg.NewID()}
	case cfg.ExpandBulk && cfg.Source.Kind == domain.FlowBulk:
		c.draft = expandBulk(*cfg.Source, cfg.NewID())
		c.state = StateSingle
		c.step = validate.StepPostingDetails
	default:
		c.draft = cfg.Source.Clone()
		c.exists = true
		switch c.draft.Kind {
		case domain.FlowBulk:
			c.state = StateBulk
		case domain.FlowSingle:
			c.state = StateSingle
			c.step = clampStep(cfg.ResumeHint)
		}
	}
	return c
}

// expandBulk seeds a new single draft from the first bulk entry only; the
// remaining entries are dropped. Known information loss, kept to match the
// established behavior of the flow.
func expandBulk(src domain.Draft, id string) domain.Draft {
	d := domain.Draft{ID: id, Kind: domain.FlowSingle}
	if src.Bulk == nil || len(src.Bulk.Entries) == 0 {
		return d
	}
	first := src.Bulk.Entries[0]
	d.Posting.Title = src.Bulk.Title
	d.Posting.Country = first.Country
	if first.Position != "" {
		d.Positions = []domain.Position{{LocalID: d.NextLocalID(), Title: first.Position}}
	}
	return d
}

func clampStep(hint int) validate.StepID {
	if hint < 0 {
		return validate.StepPostingDetails
	}
	if hint > int(validate.StepReview) {
		return validate.StepReview
	}
	return validate.StepID(hint)
}

// State returns the controller's flow state.
func (c *Controller) State() State { return c.state }

// Step returns the current single-flow step.
func (c *Controller) Step() validate.StepID { return c.step }

// Snapshot returns a deep copy of the in-memory draft.
func (c *Controller) Snapshot() domain.Draft { return c.draft.Clone() }

// Countries returns the loaded country list; it is empty when the provider
// failed (see CountriesUnavailable).
func (c *Controller) Countries() []string { return c.countries }

// CountriesUnavailable reports a degraded country provider.
func (c *Controller) CountriesUnavailable() bool { return c.countriesUnavailable }

func (c *Controller) frozen() bool {
	return c.state == StateTerminal || c.draft.Published
}

// Select enters (or re-enters) a flow. Switching flows resets the position
// but keeps already-entered data for the other flow's exclusive fields.
func (c *Controller) Select(flow domain.Flow) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	switch flow {
	case domain.FlowSingle:
		c.state = StateSingle
		c.step = validate.StepPostingDetails
	case domain.FlowBulk:
		c.state = StateBulk
		if c.draft.Bulk == nil {
			c.draft.Bulk = &domain.BulkPosting{}
		}
	default:
		return fmt.Errorf("unknown flow %q", flow)
	}
	c.draft.Kind = flow
	return nil
}

// Next validates the current step and advances on success. The bulk flow
// has a single screen, so a passing check leaves it poised for publish.
// Returned errors are field-keyed; the step index is untouched on failure.
func (c *Controller) Next() (validate.Errors, bool) {
	if c.frozen() {
		return validate.Errors{"session": ErrSessionClosed.Error()}, false
	}
	switch c.state {
	case StateBulk:
		errs := validate.CheckBulk(c.draft)
		return errs, len(errs) == 0
	case StateSingle:
		errs := validate.Check(c.step, c.draft)
		if len(errs) > 0 {
			return errs, false
		}
		if c.step < validate.StepReview {
			c.step++
		}
		return nil, true
	}
	return validate.Errors{"flow": "select a flow first"}, false
}

// Back moves one step towards flow selection. It never re-validates.
func (c *Controller) Back() {
	if c.frozen() {
		return
	}
	switch c.state {
	case StateBulk:
		c.state = StateFlowSelection
	case StateSingle:
		if c.step == validate.StepPostingDetails {
			c.state = StateFlowSelection
			return
		}
		c.step--
	}
}

// SaveAndExit persists the draft as partial with the current step recorded
// as a resume hint. The hint is advisory: progress display recomputes from
// content on next load. Not allowed from the terminal review step.
func (c *Controller) SaveAndExit(ctx context.Context) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	if c.state == StateSingle && c.step == validate.StepReview {
		return fmt.Errorf("save and exit is not available on the review step")
	}
	c.draft.IsPartial = true
	c.draft.StepHint = int(c.step)
	return c.persist(ctx)
}

// Save persists the draft as-is, keeping the partial flag and resume hint
// untouched. API-style edits use this; the wizard uses SaveAndExit.
func (c *Controller) Save(ctx context.Context) error {
	if c.frozen() {
		return ErrSessionClosed
	}
	return c.persist(ctx)
}

func (c *Controller) persist(ctx context.Context) error {
	now := c.cfg.Now().UTC().Format(time.RFC3339)
	if c.draft.CreatedAt == "" {
		c.draft.CreatedAt = now
	}
	c.draft.UpdatedAt = now
	if c.exists {
		if err := c.cfg.Store.Update(ctx, c.draft.Clone()); err != nil {
			return err
		}
		return nil
	}
	if err := c.cfg.Store.Create(ctx, c.draft.Clone()); err != nil {
		return err
	}
	c.exists = true
	return nil
}

// Publish re-validates the whole accumulated draft, then issues exactly one
// save followed by one publish call. On validation failure the session
// jumps back to the first failing step and no persistence call is made.
// On a persistence failure the session stays open and re-publishable.
func (c *Controller) Publish(ctx context.Context) (PublishResult, error) {
	if c.frozen() {
		return PublishResult{}, ErrSessionClosed
	}

	if c.state == StateBulk {
		if errs := validate.CheckBulk(c.draft); len(errs) > 0 {
			return PublishResult{
				FirstFailing: validate.StepPostingDetails,
				ErrorCount:   len(errs),
				StepErrors:   map[validate.StepID]validate.Errors{validate.StepPostingDetails: errs},
			}, nil
		}
	} else {
		stepErrs := validate.CheckAll(c.draft)
		if len(stepErrs) > 0 {
			first := validate.StepReview
			count := 0
			for step, errs := range stepErrs {
				if step < first {
					first = step
				}
				count += len(errs)
			}
			c.step = first
			return PublishResult{FirstFailing: first, ErrorCount: count, StepErrors: stepErrs}, nil
		}
	}

	c.draft.IsPartial = false
	c.draft.StepHint = int(validate.StepReview)
	if err := c.persist(ctx); err != nil {
		return PublishResult{}, err
	}
	payload := publish.Transform(c.draft)
	if err := c.cfg.Store.Publish(ctx, c.draft.ID, payload); err != nil {
		return PublishResult{}, err
	}
	c.draft.Published = true
	c.state = StateTerminal
	return PublishResult{OK: true}, nil
}
