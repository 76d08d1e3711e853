package repo

import (
	"context"

	"postline/internal/domain"
	"postline/internal/publish"

	"github.com/google/uuid"
)

// DraftStore binds a Repo to one agency and actor, giving the wizard
// controller its persistence backend.
type DraftStore struct {
	Repo     Repo
	AgencyID string
	ActorID  string
}

func (s DraftStore) Create(ctx context.Context, d domain.Draft) error {
	return s.Repo.InsertDraft(ctx, s.AgencyID, s.ActorID, d)
}

func (s DraftStore) Update(ctx context.Context, d domain.Draft) error {
	return s.Repo.UpdateDraft(ctx, s.AgencyID, s.ActorID, d)
}

func (s DraftStore) Delete(ctx context.Context, id string) error {
	return s.Repo.DeleteDraft(ctx, s.AgencyID, s.ActorID, id)
}

func (s DraftStore) Publish(ctx context.Context, id string, payload publish.Payload) error {
	return s.Repo.PublishDraft(ctx, s.AgencyID, s.ActorID, uuid.NewString(), id, payload.Title, string(payload.Kind), payload)
}

func (s DraftStore) List(ctx context.Context) ([]domain.Draft, error) {
	return s.Repo.ListDrafts(ctx, DraftFilters{AgencyID: s.AgencyID})
}
