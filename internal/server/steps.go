package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"postline/internal/session"
)

type draftPath struct {
	DraftID string `path:"draft_id"`
}

type draftItemPath struct {
	DraftID string `path:"draft_id"`
	LocalID int    `path:"local_id"`
}

var stepErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnauthorized,
	http.StatusUnprocessableEntity,
}

// registerSteps exposes one write surface per wizard step. Every route loads
// the draft, applies a single edit through the session controller and saves.
func registerSteps(api huma.API, e Env) {
	registerStepPut(api, e, "set-posting-details", "/drafts/{draft_id}/posting", "Set posting details",
		func(c *session.Controller, req PostingDetailsRequest) error {
			return c.ApplyPosting(postingFromRequest(req))
		})

	registerStepPut(api, e, "set-contract", "/drafts/{draft_id}/contract", "Set contract terms",
		func(c *session.Controller, req ContractRequest) error {
			return c.ApplyContract(contractFromRequest(req))
		})

	registerStepPut(api, e, "set-tags", "/drafts/{draft_id}/tags", "Set tag requirements",
		func(c *session.Controller, req TagsRequest) error {
			return c.ApplyTags(tagsFromRequest(req))
		})

	registerStepPut(api, e, "set-bulk-info", "/drafts/{draft_id}/bulk", "Set bulk title and company",
		func(c *session.Controller, req BulkInfoRequest) error {
			return c.SetBulkInfo(req.Title, req.Company)
		})

	registerStepPut(api, e, "set-review", "/drafts/{draft_id}/review", "Set review markers",
		func(c *session.Controller, req ReviewRequest) error {
			if req.ReviewComplete != nil {
				if err := c.MarkReview(*req.ReviewComplete); err != nil {
					return err
				}
			}
			if req.SubmitComplete != nil {
				if err := c.MarkSubmit(*req.SubmitComplete); err != nil {
					return err
				}
			}
			return nil
		})

	registerCollection(api, e, collection[PositionRequest]{
		noun:     "position",
		basePath: "/drafts/{draft_id}/positions",
		add: func(c *session.Controller, req PositionRequest) (int, error) {
			return c.AddPosition(positionFromRequest(req))
		},
		update: func(c *session.Controller, id int, req PositionRequest) error {
			return c.UpdatePosition(id, positionFromRequest(req))
		},
		remove: func(c *session.Controller, id int) error { return c.RemovePosition(id) },
	})

	registerCollection(api, e, collection[ExpenseRequest]{
		noun:     "expense",
		basePath: "/drafts/{draft_id}/expenses",
		add: func(c *session.Controller, req ExpenseRequest) (int, error) {
			return c.AddExpense(expenseFromRequest(req))
		},
		update: func(c *session.Controller, id int, req ExpenseRequest) error {
			return c.UpdateExpense(id, expenseFromRequest(req))
		},
		remove: func(c *session.Controller, id int) error { return c.RemoveExpense(id) },
	})

	registerCollection(api, e, collection[ExpenseRequest]{
		noun:     "interview-expense",
		basePath: "/drafts/{draft_id}/interview/expenses",
		add: func(c *session.Controller, req ExpenseRequest) (int, error) {
			return c.AddInterviewExpense(expenseFromRequest(req))
		},
		update: func(c *session.Controller, id int, req ExpenseRequest) error {
			return c.UpdateInterviewExpense(id, expenseFromRequest(req))
		},
		remove: func(c *session.Controller, id int) error { return c.RemoveInterviewExpense(id) },
	})

	registerCollection(api, e, collection[BulkEntryRequest]{
		noun:     "bulk-entry",
		basePath: "/drafts/{draft_id}/bulk/entries",
		add: func(c *session.Controller, req BulkEntryRequest) (int, error) {
			return c.AddBulkEntry(bulkEntryFromRequest(req))
		},
		update: func(c *session.Controller, id int, req BulkEntryRequest) error {
			return c.UpdateBulkEntry(id, bulkEntryFromRequest(req))
		},
		remove: func(c *session.Controller, id int) error { return c.RemoveBulkEntry(id) },
	})

	registerStepPut(api, e, "set-interview", "/drafts/{draft_id}/interview", "Set interview details",
		func(c *session.Controller, req InterviewRequest) error {
			return c.ApplyInterview(interviewFromRequest(req))
		})

	huma.Register(api, huma.Operation{
		OperationID: "clear-interview",
		Method:      http.MethodDelete,
		Path:        "/drafts/{draft_id}/interview",
		Summary:     "Clear interview",
		Errors:      stepErrors,
	}, func(ctx context.Context, input *draftPath) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		return mutateResponse(ctx, e, input.DraftID, func(c *session.Controller) error {
			return c.ClearInterview()
		})
	})

	registerStepPut(api, e, "attach-cutout", "/drafts/{draft_id}/cutout", "Attach cutout image",
		func(c *session.Controller, req CutoutAttachRequest) error {
			return c.AttachCutout(req.FileName, req.MimeType, req.LocalPath, req.FileSize)
		})

	registerStepPut(api, e, "mark-cutout-uploaded", "/drafts/{draft_id}/cutout/uploaded", "Mark cutout uploaded",
		func(c *session.Controller, req CutoutUploadedRequest) error {
			return c.MarkCutoutUploaded(req.URL)
		})

	huma.Register(api, huma.Operation{
		OperationID: "clear-cutout",
		Method:      http.MethodDelete,
		Path:        "/drafts/{draft_id}/cutout",
		Summary:     "Clear cutout",
		Errors:      stepErrors,
	}, func(ctx context.Context, input *draftPath) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		return mutateResponse(ctx, e, input.DraftID, func(c *session.Controller) error {
			return c.ClearCutout()
		})
	})
}

func registerStepPut[Req any](api huma.API, e Env, opID, path, summary string, apply func(*session.Controller, Req) error) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPut,
		Path:        path,
		Summary:     summary,
		Errors:      stepErrors,
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
		Body    Req    `json:"body"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		return mutateResponse(ctx, e, input.DraftID, func(c *session.Controller) error {
			return apply(c, input.Body)
		})
	})
}

// collection wires the add/update/remove triple of a repeatable step.
type collection[Req any] struct {
	noun     string
	basePath string
	add      func(*session.Controller, Req) (int, error)
	update   func(*session.Controller, int, Req) error
	remove   func(*session.Controller, int) error
}

func registerCollection[Req any](api huma.API, e Env, col collection[Req]) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-" + col.noun,
		Method:        http.MethodPost,
		Path:          col.basePath,
		Summary:       "Add " + col.noun,
		DefaultStatus: http.StatusCreated,
		Errors:        stepErrors,
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
		Body    Req    `json:"body"`
	}) (*struct {
		Body LocalIDResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		var localID int
		_, err := e.mutate(ctx, input.DraftID, func(c *session.Controller) error {
			id, err := col.add(c, input.Body)
			localID = id
			return err
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LocalIDResponse `json:"body"`
		}{Body: LocalIDResponse{LocalID: localID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + col.noun,
		Method:      http.MethodPatch,
		Path:        col.basePath + "/{local_id}",
		Summary:     "Update " + col.noun,
		Errors:      stepErrors,
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
		LocalID int    `path:"local_id"`
		Body    Req    `json:"body"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		return mutateResponse(ctx, e, input.DraftID, func(c *session.Controller) error {
			return col.update(c, input.LocalID, input.Body)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-" + col.noun,
		Method:      http.MethodDelete,
		Path:        col.basePath + "/{local_id}",
		Summary:     "Remove " + col.noun,
		Errors:      stepErrors,
	}, func(ctx context.Context, input *draftItemPath) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		return mutateResponse(ctx, e, input.DraftID, func(c *session.Controller) error {
			return col.remove(c, input.LocalID)
		})
	})
}

func mutateResponse(ctx context.Context, e Env, draftID string, fn func(*session.Controller) error) (*struct {
	Body DraftResponse `json:"body"`
}, error) {
	if _, authErr := actorIDFromContext(ctx); authErr != nil {
		return nil, authErr
	}
	d, err := e.mutate(ctx, draftID, fn)
	if err != nil {
		return nil, handleError(err)
	}
	return &struct {
		Body DraftResponse `json:"body"`
	}{Body: draftResponse(d)}, nil
}
