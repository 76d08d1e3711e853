package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/events"
)

type Repo struct {
	DB     *sql.DB
	Events events.Writer
	Now    func() time.Time
}

var (
	ErrNotFound  = errors.New("not found")
	ErrPublished = errors.New("draft already published")
)

func New(db *sql.DB) Repo {
	return Repo{DB: db, Events: events.Writer{DB: db}, Now: time.Now}
}

func (r Repo) now() string {
	if r.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return r.Now().UTC().Format(time.RFC3339)
}

// InsertDraft stores a new draft row with the full document as JSON plus
// the columns the list view filters on.
func (r Repo) InsertDraft(ctx context.Context, agencyID, actorID string, d domain.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO drafts(id,agency_id,kind,is_partial,published,step_hint,draft_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, agencyID, string(d.Kind), boolInt(d.IsPartial), boolInt(d.Published), d.StepHint, string(doc), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	if err := r.Events.Append(ctx, tx, "draft.created", agencyID, "draft", d.ID, actorID, events.EventPayload{"kind": d.Kind}); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateDraft replaces a draft document. Published drafts are immutable.
func (r Repo) UpdateDraft(ctx context.Context, agencyID, actorID string, d domain.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE drafts SET kind=?, is_partial=?, published=?, step_hint=?, draft_json=?, updated_at=?
WHERE id=? AND published=0`,
		string(d.Kind), boolInt(d.IsPartial), boolInt(d.Published), d.StepHint, string(doc), d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classifyMissedWrite(ctx, tx, d.ID)
	}
	if err := r.Events.Append(ctx, tx, "draft.saved", agencyID, "draft", d.ID, actorID, events.EventPayload{"is_partial": d.IsPartial, "step_hint": d.StepHint}); err != nil {
		return err
	}
	return tx.Commit()
}

// classifyMissedWrite explains a guarded UPDATE that touched no row. It must
// read through the open transaction: the tx holds the write lock, so a query
// on a second pooled connection would block against it.
func classifyMissedWrite(ctx context.Context, tx *sql.Tx, id string) error {
	var published int
	err := tx.QueryRowContext(ctx, `SELECT published FROM drafts WHERE id=?`, id).Scan(&published)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrPublished
}

// GetDraft loads one draft document by id.
func (r Repo) GetDraft(ctx context.Context, id string) (domain.Draft, error) {
	var doc string
	err := r.DB.QueryRowContext(ctx, `SELECT draft_json FROM drafts WHERE id=?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.Draft{}, ErrNotFound
	}
	if err != nil {
		return domain.Draft{}, err
	}
	var d domain.Draft
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return domain.Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

// DeleteDraft removes a draft and logs the deletion.
func (r Repo) DeleteDraft(ctx context.Context, agencyID, actorID, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.Events.Append(ctx, tx, "draft.deleted", agencyID, "draft", id, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

type DraftFilters struct {
	AgencyID        string
	Kind            string
	Partial         *bool
	Limit           int
	CursorUpdatedAt string
	CursorID        string
}

// ListDrafts returns draft documents newest-first with cursor pagination.
func (r Repo) ListDrafts(ctx context.Context, f DraftFilters) ([]domain.Draft, error) {
	var clauses []string
	var args []any
	if f.AgencyID != "" {
		clauses = append(clauses, "agency_id=?")
		args = append(args, f.AgencyID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Partial != nil {
		clauses = append(clauses, "is_partial=?")
		args = append(args, boolInt(*f.Partial))
	}
	if f.CursorUpdatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(updated_at < ? OR (updated_at = ? AND id < ?))")
		args = append(args, f.CursorUpdatedAt, f.CursorUpdatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT draft_json FROM drafts ` + where + ` ORDER BY updated_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Draft
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d domain.Draft
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("decode draft: %w", err)
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// Posting is a published job record as stored.
type Posting struct {
	ID          string `json:"id"`
	DraftID     string `json:"draft_id"`
	AgencyID    string `json:"agency_id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	PayloadJSON string `json:"payload_json"`
	PublishedAt string `json:"published_at" format:"date-time"`
}

// PublishDraft stores the publish payload and flips the draft immutable,
// in one transaction. A second publish of the same draft fails.
func (r Repo) PublishDraft(ctx context.Context, agencyID, actorID, postingID, draftID, title, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE drafts SET published=1, is_partial=0, updated_at=? WHERE id=? AND published=0`, r.now(), draftID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classifyMissedWrite(ctx, tx, draftID)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO postings(id,draft_id,agency_id,title,kind,payload_json,published_at) VALUES (?,?,?,?,?,?,?)`,
		postingID, draftID, agencyID, title, kind, string(data), r.now())
	if err != nil {
		return fmt.Errorf("insert posting: %w", err)
	}
	if err := r.Events.Append(ctx, tx, "draft.published", agencyID, "draft", draftID, actorID, events.EventPayload{"posting_id": postingID, "title": title}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPostingByDraft loads the published record for a draft.
func (r Repo) GetPostingByDraft(ctx context.Context, draftID string) (Posting, error) {
	var p Posting
	err := r.DB.QueryRowContext(ctx, `SELECT id,draft_id,agency_id,title,kind,payload_json,published_at FROM postings WHERE draft_id=?`, draftID).
		Scan(&p.ID, &p.DraftID, &p.AgencyID, &p.Title, &p.Kind, &p.PayloadJSON, &p.PublishedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// UpsertAgencyConfig stores the workspace config snapshot for an agency.
func (r Repo) UpsertAgencyConfig(ctx context.Context, agencyID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Agency.ID = agencyID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := r.now()
	_, err = r.DB.ExecContext(ctx, `INSERT INTO agency_configs(agency_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(agency_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, agencyID, string(payload), now, now)
	return err
}

// GetAgencyConfig loads the stored config for an agency.
func (r Repo) GetAgencyConfig(ctx context.Context, agencyID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM agency_configs WHERE agency_id=?`, agencyID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Agency.ID == "" {
		cfg.Agency.ID = agencyID
	}
	return &cfg, cfg.Validate()
}

// Event is one audit log row.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	AgencyID   string `json:"agency_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// LatestEvents returns recent events newest-first.
func (r Repo) LatestEvents(ctx context.Context, limit int, agencyID, evtType, entityID string) ([]Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if agencyID != "" {
		clauses = append(clauses, "agency_id=?")
		args = append(args, agencyID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,agency_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		var agency, entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &agency, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.AgencyID = agency.String
		e.EntityID = entity.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with id greater than cursor, oldest-first.
// The webhook dispatcher pages with it.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, agencyID string) ([]Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,agency_id,entity_kind,entity_id,actor_id,payload_json FROM events
WHERE id > ? AND agency_id = ? ORDER BY id ASC LIMIT ?`, cursor, agencyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		var agency, entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &agency, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.AgencyID = agency.String
		e.EntityID = entity.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id for an agency, or 0.
func (r Repo) LatestEventID(ctx context.Context, agencyID string) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT max(id) FROM events WHERE agency_id=?`, agencyID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// CountDraftsByKind groups drafts for the status summary.
func (r Repo) CountDraftsByKind(ctx context.Context, agencyID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT kind, count(*) FROM drafts WHERE agency_id=? GROUP BY kind`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		res[kind] = count
	}
	return res, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
