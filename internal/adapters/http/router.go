package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
	"github.com/mkorchagin/content-pipeline/internal/core/ports"
	"github.com/mkorchagin/content-pipeline/internal/core/usecase"
	"github.com/mkorchagin/content-pipeline/internal/observability/metrics"
)

// Router exposes the classification endpoint and the administrative surface
// for the rule tables. Mutating admin calls trigger a snapshot reload; a
// failed reload keeps the previous snapshot serving and surfaces the
// validation error to the operator.
type Router struct {
	classifyUC *usecase.ClassifyContentUseCase
	aliasUC    *usecase.LearnAliasUseCase
	repo       ports.RuleRepository
	snapshots  interface {
		ports.SnapshotSource
		ports.SnapshotReloader
	}
	pipelineMetrics *metrics.PipelineMetrics
	httpMetrics     *metrics.HTTPServerMetrics
	service         string
}

func NewRouter(
	classifyUC *usecase.ClassifyContentUseCase,
	aliasUC *usecase.LearnAliasUseCase,
	repo ports.RuleRepository,
	snapshots interface {
		ports.SnapshotSource
		ports.SnapshotReloader
	},
	pipelineMetrics *metrics.PipelineMetrics,
	service string,
) *Router {
	rt := &Router{
		classifyUC:      classifyUC,
		aliasUC:         aliasUC,
		repo:            repo,
		snapshots:       snapshots,
		pipelineMetrics: pipelineMetrics,
		service:         service,
	}
	if pipelineMetrics != nil {
		rt.httpMetrics = pipelineMetrics.HTTPServer(service)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/classify", rt.classify)
	mux.HandleFunc("/v1/categories", rt.categories)
	mux.HandleFunc("/v1/categories/", rt.categoryByID)
	mux.HandleFunc("/v1/actions", rt.actions)
	mux.HandleFunc("/v1/matchers", rt.matchers)
	mux.HandleFunc("/v1/aliases", rt.aliases)
	mux.HandleFunc("/v1/snapshot/reload", rt.reloadSnapshot)
	if rt.pipelineMetrics != nil {
		mux.Handle("/metrics", rt.pipelineMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	if _, err := rt.snapshots.Current(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var item domain.ContentItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode content item", err))
		return
	}

	result, err := rt.classifyUC.Run(r.Context(), item)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.pipelineMetrics != nil {
		rt.pipelineMetrics.ObserveRun(rt.service, result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) categories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cats, err := rt.repo.ListCategories(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Priority    int    `json:"priority"`
			Fallback    bool   `json:"fallback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode category", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "create category", errors.New("name is required")))
			return
		}
		now := time.Now().UTC()
		cat := &domain.Category{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Priority:    req.Priority,
			Active:      true,
			Fallback:    req.Fallback,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := rt.repo.CreateCategory(r.Context(), cat); err != nil {
			writeError(w, err)
			return
		}
		rt.reloadAfterMutation(w, r, http.StatusCreated, cat)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) categoryByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/categories/")
	if categoryID, ok := strings.CutSuffix(rest, "/actions"); ok {
		rt.bindAction(w, r, strings.Trim(categoryID, "/"))
		return
	}
	categoryID := strings.Trim(rest, "/")
	if categoryID == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "category id", errors.New("missing id")))
		return
	}

	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Priority    int    `json:"priority"`
		Active      bool   `json:"active"`
		Fallback    bool   `json:"fallback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode category", err))
		return
	}
	cat := &domain.Category{
		ID:          categoryID,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		Active:      req.Active,
		Fallback:    req.Fallback,
	}
	if err := rt.repo.UpdateCategory(r.Context(), cat); err != nil {
		writeError(w, err)
		return
	}
	rt.reloadAfterMutation(w, r, http.StatusOK, cat)
}

func (rt *Router) actions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		acts, err := rt.repo.ListActions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, acts)
	case http.MethodPost:
		var req struct {
			Name       string `json:"name"`
			HandlerKey string `json:"handler_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode action", err))
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.HandlerKey) == "" {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "create action", errors.New("name and handler_key are required")))
			return
		}
		now := time.Now().UTC()
		act := &domain.Action{
			ID:         uuid.NewString(),
			Name:       req.Name,
			HandlerKey: req.HandlerKey,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := rt.repo.CreateAction(r.Context(), act); err != nil {
			writeError(w, err)
			return
		}
		rt.reloadAfterMutation(w, r, http.StatusCreated, act)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) matchers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ms, err := rt.repo.ListMatchers(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ms)
	case http.MethodPost:
		var req struct {
			CategoryID string `json:"category_id"`
			Type       string `json:"type"`
			Pattern    string `json:"pattern"`
			Exclude    bool   `json:"exclude"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode matcher", err))
			return
		}
		matcherType := domain.MatcherType(req.Type)
		if matcherType != domain.MatcherTypeDomain && matcherType != domain.MatcherTypeKeyword {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "create matcher", errors.New("type must be domain or keyword")))
			return
		}
		if strings.TrimSpace(req.Pattern) == "" || strings.TrimSpace(req.CategoryID) == "" {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "create matcher", errors.New("category_id and pattern are required")))
			return
		}
		m := &domain.Matcher{
			ID:         uuid.NewString(),
			CategoryID: req.CategoryID,
			Type:       matcherType,
			Pattern:    req.Pattern,
			Exclude:    req.Exclude,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := rt.repo.CreateMatcher(r.Context(), m); err != nil {
			writeError(w, err)
			return
		}
		rt.reloadAfterMutation(w, r, http.StatusCreated, m)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) bindAction(w http.ResponseWriter, r *http.Request, categoryID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		ActionID       string         `json:"action_id"`
		ExecutionOrder int            `json:"execution_order"`
		Config         map[string]any `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode binding", err))
		return
	}
	if strings.TrimSpace(req.ActionID) == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "bind action", errors.New("action_id is required")))
		return
	}
	binding := &domain.CategoryAction{
		CategoryID:     categoryID,
		ActionID:       req.ActionID,
		ExecutionOrder: req.ExecutionOrder,
		Config:         req.Config,
		CreatedAt:      time.Now().UTC(),
	}
	if err := rt.repo.BindAction(r.Context(), binding); err != nil {
		writeError(w, err)
		return
	}
	rt.reloadAfterMutation(w, r, http.StatusCreated, binding)
}

func (rt *Router) aliases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req struct {
		RawLabel   string  `json:"raw_label"`
		CategoryID string  `json:"category_id"`
		Threshold  float64 `json:"threshold"`
		Reprocess  bool    `json:"reprocess"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode alias", err))
		return
	}

	alias, err := rt.aliasUC.LearnAlias(r.Context(), req.RawLabel, req.CategoryID, req.Threshold, req.Reprocess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alias)
}

func (rt *Router) reloadSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := rt.snapshots.Reload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// reloadAfterMutation swaps the snapshot so the change takes effect. The row
// is durable either way; a failed reload reports the validation problem while
// the previous snapshot keeps serving.
func (rt *Router) reloadAfterMutation(w http.ResponseWriter, r *http.Request, status int, body any) {
	if err := rt.snapshots.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "saved, but snapshot reload failed: " + err.Error(),
		})
		return
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
