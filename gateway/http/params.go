package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c360/heritagestreams/service"
	"github.com/c360/heritagestreams/taxonomy"
)

// parseFilters reads listing filters from the query string. Range checks
// are left to the service.
func parseFilters(r *http.Request) (service.Filters, error) {
	q := r.URL.Query()
	f := service.Filters{
		Search:    strings.TrimSpace(q.Get("q")),
		Category:  q.Get("category"),
		Region:    q.Get("region"),
		Language:  q.Get("language"),
		Culture:   q.Get("culture"),
		Authors:   listParam(r, "author"),
		LabelMode: strings.ToLower(q.Get("label_mode")),
	}

	var err error
	if f.Page, err = intParam(q, "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = intParam(q, "page_size"); err != nil {
		return f, err
	}
	if f.Since, err = timeParam(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = timeParam(q, "until"); err != nil {
		return f, err
	}
	if f.Fresh, err = boolParam(q, "fresh"); err != nil {
		return f, err
	}
	if f.Labels, err = labelParams(q["label"]); err != nil {
		return f, err
	}
	return f, nil
}

func parseLabelQuery(r *http.Request) (service.LabelQuery, error) {
	q := r.URL.Query()
	lq := service.LabelQuery{
		Mode:   strings.ToLower(q.Get("mode")),
		SortBy: strings.ToLower(q.Get("sort")),
	}

	var err error
	if lq.Limit, err = intParam(q, "limit"); err != nil {
		return lq, err
	}
	if lq.Fresh, err = boolParam(q, "fresh"); err != nil {
		return lq, err
	}
	if lq.Filters, err = labelParams(q["filter"]); err != nil {
		return lq, err
	}
	return lq, nil
}

// listParam collects a repeatable, comma-separated parameter.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}

// timeParam accepts RFC 3339 or unix seconds.
func timeParam(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339 or unix seconds", name)
	}
	return t, nil
}

// labelParams parses "namespace:value" filters. Either side may be empty to
// match any; a bare word is a namespace.
func labelParams(raw []string) ([]taxonomy.Filter, error) {
	var out []taxonomy.Filter
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ns, value, _ := strings.Cut(item, ":")
		f := taxonomy.Filter{
			Namespace: strings.ToLower(strings.TrimSpace(ns)),
			Value:     strings.TrimSpace(value),
		}
		if f.Namespace == "" && f.Value == "" {
			return nil, fmt.Errorf("label filter %q is empty", item)
		}
		out = append(out, f)
	}
	return out, nil
}
