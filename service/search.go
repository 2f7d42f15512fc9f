package service

import (
	"context"
	"strings"
	"time"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/protocol"
)

// Search hit types.
const (
	HitCulture    = "culture"
	HitExhibition = "exhibition"
	HitResource   = "resource"
	HitStory      = "elder_story"
)

// SearchHit is one matching record of any searchable type.
type SearchHit struct {
	Type      string    `json:"type"`
	EventID   string    `json:"event_id"`
	Pubkey    string    `json:"pubkey"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const snippetLength = 160

// Search matches f.Search against cultures, exhibitions, resources and
// stories, newest first.
func (s *Service) Search(ctx context.Context, f Filters) (Page[SearchHit], error) {
	if strings.TrimSpace(f.Search) == "" {
		return Page[SearchHit]{}, errors.WrapInvalid(ErrInvalidFilters, "Service", "Search", "require search text")
	}

	events, err := s.events(ctx, "Search", f,
		protocol.KindCultureRecord, protocol.KindExhibition, protocol.KindResourceRecord, protocol.KindLongFormStory)
	if err != nil {
		return Page[SearchHit]{}, err
	}

	hits := make([]SearchHit, 0)
	for _, ev := range events {
		hit, ok := s.searchHit(ev)
		if ok && matchText(f.Search, hit.Title, hit.Snippet) {
			hits = append(hits, hit)
		}
	}
	return paginate(hits, f.Page, f.PageSize), nil
}

// searchHit decodes one event into a hit. Undecodable events are skipped;
// the listing adapters already report them.
func (s *Service) searchHit(ev *protocol.Event) (SearchHit, bool) {
	var hit SearchHit
	switch ev.Kind {
	case protocol.KindCultureRecord:
		c, err := s.adapters.DecodeCulture(ev)
		if err != nil {
			return hit, false
		}
		hit = SearchHit{Type: HitCulture, Title: c.Name, Snippet: c.Description}
	case protocol.KindExhibition:
		e, err := s.adapters.DecodeExhibition(ev)
		if err != nil {
			return hit, false
		}
		hit = SearchHit{Type: HitExhibition, Title: e.Title, Snippet: e.Description}
	case protocol.KindResourceRecord:
		r, err := s.adapters.DecodeResource(ev)
		if err != nil {
			return hit, false
		}
		hit = SearchHit{Type: HitResource, Title: r.Title, Snippet: r.Description}
	case protocol.KindLongFormStory:
		st, err := s.adapters.DecodeElderStory(ev)
		if err != nil {
			return hit, false
		}
		snippet := st.Summary
		if snippet == "" {
			snippet = st.Body
		}
		hit = SearchHit{Type: HitStory, Title: st.Title, Snippet: snippet}
	default:
		return hit, false
	}

	hit.EventID = ev.ID
	hit.Pubkey = ev.PubKey
	hit.CreatedAt = time.Unix(int64(ev.CreatedAt), 0).UTC()
	hit.Snippet = truncate(hit.Snippet, snippetLength)
	return hit, true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
