package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
)

const (
	defaultSearchCount = 100
	maxSearchCount     = 300
)

// SearchHandler exposes the aggregator at GET /search.
//
// Query parameters: q (required), mailru and spotify toggles with their
// mcount and scount limits. With a single provider the response is a list;
// with both it is an object keyed by provider name.
type SearchHandler struct {
	aggregator  *services.Aggregator
	rw          *responder
	requireAuth Middleware
}

func NewSearchHandler(aggregator *services.Aggregator, rw *responder, requireAuth Middleware) *SearchHandler {
	return &SearchHandler{aggregator: aggregator, rw: rw, requireAuth: requireAuth}
}

func (h *SearchHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/search", Handler: http.HandlerFunc(h.search), Middleware: []Middleware{h.requireAuth}},
	}
}

type providerToggle struct {
	name       string
	enableKey  string
	countKey   string
	defaultsOn bool
}

var toggles = []providerToggle{
	{name: services.MailRu, enableKey: "mailru", countKey: "mcount", defaultsOn: true},
	{name: services.Spotify, enableKey: "spotify", countKey: "scount"},
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if !params.Has("q") {
		h.rw.error(w, r, shared.NewValidationError("q", "field 'q' is required"))
		return
	}

	limits, err := h.limits(params)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}

	q := params.Get("q")
	if len(limits) == 1 {
		for provider, limit := range limits {
			results, err := h.aggregator.Search(r.Context(), q, limit, provider)
			if err != nil {
				h.rw.error(w, r, err)
				return
			}
			h.rw.json(w, http.StatusOK, results)
		}
		return
	}

	results, err := h.aggregator.SearchAll(r.Context(), q, limits)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.json(w, http.StatusOK, results)
}

// limits resolves which providers to query and how many results each may return.
func (h *SearchHandler) limits(params url.Values) (map[string]int, error) {
	registered := h.aggregator.Providers()
	limits := make(map[string]int, len(toggles))

	for _, t := range toggles {
		on := t.defaultsOn
		if raw := params.Get(t.enableKey); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, shared.NewValidationError(t.enableKey, fmt.Sprintf("field '%s' must be a boolean", t.enableKey))
			}
			on = v
		}

		count := defaultSearchCount
		if raw := params.Get(t.countKey); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 || v > maxSearchCount {
				return nil, shared.NewValidationError(t.countKey,
					fmt.Sprintf("field '%s' must be greater than 0 and at most %d", t.countKey, maxSearchCount))
			}
			count = v
		}

		if !on {
			continue
		}
		if _, err := registered.Get(t.name); err != nil {
			return nil, shared.NewValidationError(t.enableKey, fmt.Sprintf("provider '%s' is not enabled", t.name))
		}
		limits[t.name] = count
	}

	if len(limits) == 0 {
		return nil, shared.NewValidationError("provider", "at least one provider must be selected")
	}
	return limits, nil
}
