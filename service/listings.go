package service

import (
	"context"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/media"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/taxonomy"
)

// ArtifactView is an artifact with its resolved media.
type ArtifactView struct {
	domain.Artifact
	Media *media.Result `json:"media,omitempty"`
}

// events validates f, queries kinds, collapses replaceable kinds to their
// latest revision and then applies label narrowing to the survivors.
func (s *Service) events(ctx context.Context, method string, f Filters, kinds ...int) ([]*protocol.Event, error) {
	if err := s.check(method, f); err != nil {
		return nil, err
	}

	events, err := s.fetch(ctx, method, s.queryOptions(f, kinds...))
	if err != nil {
		return nil, err
	}
	events = protocol.CollapseReplaceable(events)

	if len(f.Labels) > 0 {
		mode := taxonomy.ParseMode(f.LabelMode)
		narrowed := events[:0:0]
		for _, ev := range events {
			if taxonomy.MatchesEvent(ev, f.Labels, mode) {
				narrowed = append(narrowed, ev)
			}
		}
		events = narrowed
	}
	return events, nil
}

func filterItems[T any](items []T, keep func(T) bool) []T {
	out := items[:0:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// GetCultures lists culture records.
func (s *Service) GetCultures(ctx context.Context, f Filters) (Page[domain.Culture], error) {
	events, err := s.events(ctx, "GetCultures", f, protocol.KindCultureRecord)
	if err != nil {
		return Page[domain.Culture]{}, err
	}

	items := filterItems(s.adapters.Cultures(events), func(c domain.Culture) bool {
		return matchExact(f.Category, string(c.Category)) &&
			matchExact(f.Region, c.Region) &&
			matchExact(f.Language, c.Language) &&
			matchText(f.Search, c.Name, c.Description)
	})
	return paginate(items, f.Page, f.PageSize), nil
}

// GetExhibitions lists exhibition records.
func (s *Service) GetExhibitions(ctx context.Context, f Filters) (Page[domain.Exhibition], error) {
	events, err := s.events(ctx, "GetExhibitions", f, protocol.KindExhibition)
	if err != nil {
		return Page[domain.Exhibition]{}, err
	}

	items := filterItems(s.adapters.Exhibitions(events), func(e domain.Exhibition) bool {
		return matchExact(f.Category, string(e.Category)) &&
			matchExact(f.Culture, e.Culture) &&
			matchText(f.Region, e.Location) &&
			matchText(f.Search, e.Title, e.Description)
	})
	return paginate(items, f.Page, f.PageSize), nil
}

// GetResources lists resource records. Category matches the resource type.
func (s *Service) GetResources(ctx context.Context, f Filters) (Page[domain.Resource], error) {
	events, err := s.events(ctx, "GetResources", f, protocol.KindResourceRecord)
	if err != nil {
		return Page[domain.Resource]{}, err
	}

	items := filterItems(s.adapters.Resources(events), func(r domain.Resource) bool {
		return matchExact(f.Category, string(r.Type)) &&
			matchExact(f.Culture, r.Culture) &&
			matchExact(f.Language, r.Language) &&
			matchText(f.Search, r.Title, r.Description)
	})
	return paginate(items, f.Page, f.PageSize), nil
}

// GetElderStories lists long-form stories.
func (s *Service) GetElderStories(ctx context.Context, f Filters) (Page[domain.ElderStory], error) {
	events, err := s.events(ctx, "GetElderStories", f, protocol.KindLongFormStory)
	if err != nil {
		return Page[domain.ElderStory]{}, err
	}

	items := filterItems(s.adapters.ElderStories(events), func(st domain.ElderStory) bool {
		return matchExact(f.Culture, st.Culture) &&
			matchExact(f.Language, st.Language) &&
			matchText(f.Search, st.Title, st.Summary, st.Body, st.Elder)
	})
	return paginate(items, f.Page, f.PageSize), nil
}

// GetArtifacts lists artifacts. When a resolver is configured the media of
// the returned page is resolved.
func (s *Service) GetArtifacts(ctx context.Context, f Filters) (Page[ArtifactView], error) {
	events, err := s.events(ctx, "GetArtifacts", f, protocol.KindFileMetadata)
	if err != nil {
		return Page[ArtifactView]{}, err
	}

	artifacts := filterItems(s.adapters.Artifacts(events), func(a domain.Artifact) bool {
		return matchExact(f.Culture, a.Culture) &&
			matchText(f.Region, a.Origin) &&
			matchText(f.Search, a.Name, a.Description)
	})

	views := make([]ArtifactView, len(artifacts))
	for i, a := range artifacts {
		views[i] = ArtifactView{Artifact: a}
	}
	page := paginate(views, f.Page, f.PageSize)

	if s.resolver != nil {
		byID := make(map[string]*protocol.Event, len(events))
		for _, ev := range events {
			byID[ev.ID] = ev
		}
		for i := range page.Data {
			result := s.resolver.ResolveEvent(ctx, byID[page.Data[i].EventID])
			page.Data[i].Media = &result
		}
	}
	return page, nil
}

// ResolveMedia resolves a bare media URL.
func (s *Service) ResolveMedia(ctx context.Context, url string) media.Result {
	if s.resolver == nil {
		return media.Placeholder(media.CategoryDocument)
	}
	return s.resolver.ResolveURL(ctx, url)
}
