package http

import (
	"context"
	"net/http"

	"github.com/c360/heritagestreams/health"
	"github.com/c360/heritagestreams/service"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if g.monitor == nil {
		writeJSON(w, http.StatusOK, health.NewHealthy(SystemName, "No checks registered"))
		return
	}

	status := g.monitor.Check(SystemName)
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (g *Gateway) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if g.cacheStats == nil {
		writeError(w, http.StatusNotFound, "cache statistics not available")
		return
	}
	writeJSON(w, http.StatusOK, g.cacheStats())
}

func (g *Gateway) handleRelays(w http.ResponseWriter, _ *http.Request) {
	if g.relayStatus == nil {
		writeError(w, http.StatusNotFound, "relay status not available")
		return
	}
	writeJSON(w, http.StatusOK, g.relayStatus())
}

// listing adapts a paged service method into a handler.
func listing[T any](g *Gateway, method string, fetch func(*service.Service, context.Context, service.Filters) (service.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilters(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		page, err := fetch(g.svc, r.Context(), f)
		if err != nil {
			g.writeServiceError(w, r, method, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (g *Gateway) handleRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := g.svc.GetRatings(r.Context(), listParam(r, "ids"))
	if err != nil {
		g.writeServiceError(w, r, "GetRatings", err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

func (g *Gateway) handleLabels(w http.ResponseWriter, r *http.Request) {
	q, err := parseLabelQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	labels, err := g.svc.GetLabels(r.Context(), q)
	if err != nil {
		g.writeServiceError(w, r, "GetLabels", err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (g *Gateway) handleLabelStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.svc.LabelStatistics())
}

func (g *Gateway) handleMedia(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusOK, g.svc.ResolveMedia(r.Context(), url))
}
