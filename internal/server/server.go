package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"postline/internal/config"
	"postline/internal/domain"
	"postline/internal/progress"
	"postline/internal/publish"
	"postline/internal/repo"
	"postline/internal/session"
	"postline/internal/validate"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	AgencyID string
	Catalog  *config.Config
	BasePath string
	Auth     AuthConfig
}

// Env is the request-handling environment shared by all routes.
type Env struct {
	Repo     repo.Repo
	AgencyID string
	Catalog  *config.Config
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"draft is not ready to publish"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"posting_details.country\":\"country is required\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Postline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Postline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	env := Env{Repo: cfg.Repo, AgencyID: cfg.AgencyID, Catalog: cfg.Catalog}

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, env)
	registerCatalog(group, env)
	registerDrafts(group, env)
	registerSteps(group, env)
	registerPublish(group, env)
	registerEvents(group, env)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(env)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe session.FileError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusUnprocessableEntity, "file_rejected", err.Error(), map[string]any{"field": fe.Field})
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, session.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrPublished) || errors.Is(err, session.ErrSessionClosed) {
		return newAPIError(http.StatusConflict, "draft_published", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

// openSession loads a stored draft and builds the one-shot editing session
// the API routes mutate through.
func (e Env) openSession(ctx context.Context, draftID string) (*session.Controller, error) {
	d, err := e.Repo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return session.New(ctx, e.sessionConfig(&d)), nil
}

func (e Env) sessionConfig(source *domain.Draft) session.Config {
	cfg := session.Config{
		Store:           repo.DraftStore{Repo: e.Repo, AgencyID: e.AgencyID, ActorID: "api"},
		Countries:       config.CountrySource{Cfg: e.Catalog},
		DefaultCurrency: e.Catalog.Defaults.Currency,
		MaxCutoutBytes:  e.Catalog.Cutout.MaxSizeBytes,
		CutoutMimeTypes: e.Catalog.Cutout.MimeTypes,
		Source:          source,
	}
	if source != nil {
		cfg.ResumeHint = source.StepHint
	}
	return cfg
}

// mutate runs one edit against a draft and saves it.
func (e Env) mutate(ctx context.Context, draftID string, fn func(*session.Controller) error) (domain.Draft, error) {
	c, err := e.openSession(ctx, draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := fn(c); err != nil {
		return domain.Draft{}, err
	}
	if err := c.Save(ctx); err != nil {
		return domain.Draft{}, err
	}
	return c.Snapshot(), nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Postline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Agency status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		counts, err := e.Repo.CountDraftsByKind(ctx, e.AgencyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"agency_id":    e.AgencyID,
			"agency_name":  e.Catalog.Agency.Name,
			"draft_counts": counts,
		}}, nil
	})
}

func registerCatalog(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "catalog",
		Method:      http.MethodGet,
		Path:        "/catalog",
		Summary:     "Editing catalog",
		Description: "Country list, announcement types, expense types, interview document kinds and cutout limits the wizard edits against.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CatalogResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body CatalogResponse `json:"body"`
		}{Body: catalogResponse(e.Catalog)}, nil
	})
}

func registerDrafts(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-draft",
		Method:        http.MethodPost,
		Path:          "/drafts",
		Summary:       "Create draft",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateDraftRequest `json:"body"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		flow := domain.Flow(input.Body.Kind)
		if flow != domain.FlowSingle && flow != domain.FlowBulk {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid kind %q", input.Body.Kind), nil)
		}
		c := session.New(ctx, e.sessionConfig(nil))
		if err := c.Select(flow); err != nil {
			return nil, handleError(err)
		}
		if err := c.SaveAndExit(ctx); err != nil {
			return nil, handleError(err)
		}
		d := c.Snapshot()
		return &struct {
			Body DraftResponse `json:"body"`
		}{Body: draftResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-drafts",
		Method:      http.MethodGet,
		Path:        "/drafts",
		Summary:     "List drafts",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Kind    string `query:"kind" enum:"single,bulk,"`
		Partial string `query:"partial" enum:"true,false,"`
		Limit   int    `query:"limit"`
	}) (*struct {
		Body []DraftResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		filters := repo.DraftFilters{AgencyID: e.AgencyID, Kind: input.Kind, Limit: input.Limit}
		switch input.Partial {
		case "true":
			v := true
			filters.Partial = &v
		case "false":
			v := false
			filters.Partial = &v
		}
		items, err := e.Repo.ListDrafts(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DraftResponse `json:"body"`
		}{Body: mapDrafts(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-draft",
		Method:      http.MethodGet,
		Path:        "/drafts/{draft_id}",
		Summary:     "Get draft",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body DraftDetailResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DraftDetailResponse `json:"body"`
		}{Body: draftDetailResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-draft",
		Method:        http.MethodDelete,
		Path:          "/drafts/{draft_id}",
		Summary:       "Delete draft",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteDraft(ctx, e.AgencyID, actorID, input.DraftID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-draft-progress",
		Method:      http.MethodGet,
		Path:        "/drafts/{draft_id}/progress",
		Summary:     "Draft progress",
		Description: "Recomputed from content; the stored step hint never feeds it.",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body ProgressResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgressResponse `json:"body"`
		}{Body: progressResponse(progress.Evaluate(d))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-draft",
		Method:      http.MethodGet,
		Path:        "/drafts/{draft_id}/validate",
		Summary:     "Validate draft",
		Description: "Field-keyed errors per step, without mutating the draft.",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body ValidationResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ValidationResponse `json:"body"`
		}{Body: validationResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "expand-draft",
		Method:        http.MethodPost,
		Path:          "/drafts/{draft_id}/expand",
		Summary:       "Expand bulk draft",
		Description:   "Creates a new single draft seeded from the bulk draft's first entry.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		src, err := e.Repo.GetDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		if src.Kind != domain.FlowBulk {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "only bulk drafts can be expanded", nil)
		}
		cfg := e.sessionConfig(&src)
		cfg.ExpandBulk = true
		c := session.New(ctx, cfg)
		if err := c.SaveAndExit(ctx); err != nil {
			return nil, handleError(err)
		}
		d := c.Snapshot()
		return &struct {
			Body DraftResponse `json:"body"`
		}{Body: draftResponse(d)}, nil
	})
}

func registerPublish(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "publish-draft",
		Method:      http.MethodPost,
		Path:        "/drafts/{draft_id}/publish",
		Summary:     "Publish draft",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body PublishResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.openSession(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := c.Publish(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if !res.OK {
			return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed",
				fmt.Sprintf("%d fields failed validation", res.ErrorCount), publishErrorDetails(res))
		}
		p, err := e.Repo.GetPostingByDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PublishResponse `json:"body"`
		}{Body: publishResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-posting",
		Method:      http.MethodGet,
		Path:        "/drafts/{draft_id}/posting",
		Summary:     "Get published posting",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		DraftID string `path:"draft_id"`
	}) (*struct {
		Body PostingResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetPostingByDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		var payload publish.Payload
		if err := json.Unmarshal([]byte(p.PayloadJSON), &payload); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PostingResponse `json:"body"`
		}{Body: postingResponse(p, payload)}, nil
	})
}

func registerEvents(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit"`
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
	}) (*struct {
		Body []repo.Event `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit, e.AgencyID, input.Type, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []repo.Event `json:"body"`
		}{Body: items}, nil
	})
}

func publishErrorDetails(res session.PublishResult) map[string]any {
	steps := map[string]any{}
	for step, errs := range res.StepErrors {
		steps[validate.Steps[step].Name] = errs
	}
	return map[string]any{
		"first_failing_step": validate.Steps[res.FirstFailing].Name,
		"error_count":        res.ErrorCount,
		"steps":              steps,
	}
}
