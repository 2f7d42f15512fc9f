package service

import (
	"context"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/query"
	"github.com/c360/heritagestreams/taxonomy"
)

type ratingRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,len=64,hexadecimal"`
}

// GetRatings aggregates star ratings for the given event IDs. IDs without
// ratings are absent from the result.
func (s *Service) GetRatings(ctx context.Context, ids []string) (map[string]domain.Rating, error) {
	if err := s.check("GetRatings", ratingRequest{IDs: ids}); err != nil {
		return nil, err
	}

	events, err := s.fetch(ctx, "GetRatings", query.Options{
		Kinds: []int{protocol.KindReaction},
		Tags:  map[string][]string{"e": ids},
		Limit: s.fetchLimit,
	})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make(map[string]domain.Rating)
	for target, rating := range s.adapters.Ratings(events) {
		if wanted[target] {
			out[target] = rating
		}
	}
	return out, nil
}

// GetLabels refreshes the taxonomy from label events on the relays and
// queries it.
func (s *Service) GetLabels(ctx context.Context, q LabelQuery) ([]domain.Label, error) {
	if err := s.check("GetLabels", q); err != nil {
		return nil, err
	}

	events, err := s.fetch(ctx, "GetLabels", query.Options{
		Kinds:     []int{protocol.KindLabel},
		Tags:      map[string][]string{"L": domain.LabelNamespaces()},
		Limit:     s.fetchLimit,
		SkipCache: q.Fresh,
	})
	if err != nil {
		return nil, err
	}

	result := s.taxonomy.ProcessEvents(events)
	if result.Processed > 0 {
		s.logger.Debug("Taxonomy updated",
			"events", result.Processed,
			"labels", result.Labels,
			"rejected", result.Rejected)
	}

	sortBy := taxonomy.SortKey(q.SortBy)
	if sortBy == "" {
		sortBy = taxonomy.SortByCount
	}
	return s.taxonomy.Query(q.Filters, taxonomy.QueryOptions{
		Mode:   taxonomy.ParseMode(q.Mode),
		SortBy: sortBy,
		Limit:  q.Limit,
	}), nil
}

// LabelStatistics returns the taxonomy totals.
func (s *Service) LabelStatistics() taxonomy.Statistics {
	return s.taxonomy.Statistics()
}
