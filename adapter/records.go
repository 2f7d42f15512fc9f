package adapter

import (
	"encoding/json"
	"strings"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/protocol"
)

type cultureContent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Region      string   `json:"region"`
	Language    string   `json:"language"`
	Image       string   `json:"image"`
	Tags        []string `json:"tags"`
}

type exhibitionContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Culture     string   `json:"culture"`
	Location    string   `json:"location"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Image       string   `json:"image"`
	Artifacts   []string `json:"artifacts"`
	Tags        []string `json:"tags"`
}

type resourceContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	URL         string   `json:"url"`
	Culture     string   `json:"culture"`
	Language    string   `json:"language"`
	License     string   `json:"license"`
	Tags        []string `json:"tags"`
}

// Cultures decodes kind 30001 events.
func (a *Adapter) Cultures(events []*protocol.Event) []domain.Culture {
	return decodeBatch(a, "cultures", protocol.KindCultureRecord, events, a.DecodeCulture)
}

// DecodeCulture decodes a single culture record.
func (a *Adapter) DecodeCulture(ev *protocol.Event) (domain.Culture, error) {
	var c cultureContent
	if err := a.decodeContent("culture", ev, &c); err != nil {
		return domain.Culture{}, decodeError("cultures", ev, err)
	}

	out := domain.Culture{
		Source:      source(ev),
		DTag:        tag(ev, "d", ""),
		Name:        tag(ev, "name", c.Name),
		Description: tag(ev, "description", tag(ev, "summary", c.Description)),
		Category:    domain.ParseCultureCategory(tag(ev, "category", c.Category)),
		Region:      tag(ev, "region", c.Region),
		Language:    tag(ev, "language", c.Language),
		Image:       tag(ev, "image", c.Image),
		Tags:        topics(ev, c.Tags),
	}
	if out.Name == "" {
		return domain.Culture{}, decodeError("cultures", ev, missingField("name"))
	}
	return out, nil
}

// Exhibitions decodes kind 30002 events.
func (a *Adapter) Exhibitions(events []*protocol.Event) []domain.Exhibition {
	return decodeBatch(a, "exhibitions", protocol.KindExhibition, events, a.DecodeExhibition)
}

// DecodeExhibition decodes a single exhibition record.
func (a *Adapter) DecodeExhibition(ev *protocol.Event) (domain.Exhibition, error) {
	var c exhibitionContent
	if err := a.decodeContent("exhibition", ev, &c); err != nil {
		return domain.Exhibition{}, decodeError("exhibitions", ev, err)
	}

	artifacts := protocol.TagValues(ev, "a")
	if len(artifacts) == 0 {
		artifacts = c.Artifacts
	}

	out := domain.Exhibition{
		Source:      source(ev),
		DTag:        tag(ev, "d", ""),
		Title:       tag(ev, "title", c.Title),
		Description: tag(ev, "description", tag(ev, "summary", c.Description)),
		Category:    domain.ParseExhibitionCategory(tag(ev, "category", c.Category)),
		Culture:     tag(ev, "culture", c.Culture),
		Location:    tag(ev, "location", c.Location),
		StartDate:   tag(ev, "start", c.StartDate),
		EndDate:     tag(ev, "end", c.EndDate),
		Image:       tag(ev, "image", c.Image),
		Artifacts:   artifacts,
		Tags:        topics(ev, c.Tags),
	}
	if out.Title == "" {
		return domain.Exhibition{}, decodeError("exhibitions", ev, missingField("title"))
	}
	return out, nil
}

// Resources decodes kind 30003 events.
func (a *Adapter) Resources(events []*protocol.Event) []domain.Resource {
	return decodeBatch(a, "resources", protocol.KindResourceRecord, events, a.DecodeResource)
}

// DecodeResource decodes a single resource record.
func (a *Adapter) DecodeResource(ev *protocol.Event) (domain.Resource, error) {
	var c resourceContent
	if err := a.decodeContent("resource", ev, &c); err != nil {
		return domain.Resource{}, decodeError("resources", ev, err)
	}

	out := domain.Resource{
		Source:      source(ev),
		DTag:        tag(ev, "d", ""),
		Title:       tag(ev, "title", c.Title),
		Description: tag(ev, "description", tag(ev, "summary", c.Description)),
		Type:        domain.ParseResourceType(tag(ev, "type", c.Type)),
		URL:         tag(ev, "url", tag(ev, "r", c.URL)),
		Culture:     tag(ev, "culture", c.Culture),
		Language:    tag(ev, "language", c.Language),
		License:     tag(ev, "license", c.License),
		Tags:        topics(ev, c.Tags),
	}
	if out.Title == "" {
		return domain.Resource{}, decodeError("resources", ev, missingField("title"))
	}
	return out, nil
}

// decodeContent validates ev.Content against the named schema and unmarshals it.
func (a *Adapter) decodeContent(schema string, ev *protocol.Event, into any) error {
	if err := a.schemas.validate(schema, ev.Content); err != nil {
		return errors.WrapInvalid(err, "adapter", "decodeContent", "validate "+schema+" content")
	}
	if err := json.Unmarshal([]byte(ev.Content), into); err != nil {
		return errors.WrapInvalid(err, "adapter", "decodeContent", "unmarshal "+schema+" content")
	}
	return nil
}

func source(ev *protocol.Event) domain.Source {
	return domain.Source{
		EventID:   ev.ID,
		Pubkey:    ev.PubKey,
		CreatedAt: domain.ToTime(int64(ev.CreatedAt)),
	}
}

// tag returns the trimmed value of the first non-empty tag named name,
// falling back to the trimmed fallback.
func tag(ev *protocol.Event, name, fallback string) string {
	for _, v := range protocol.TagValues(ev, name) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}

// topics returns the event's t tags, or the content's tags when there are none.
func topics(ev *protocol.Event, fallback []string) []string {
	if ts := protocol.TagValues(ev, "t"); len(ts) > 0 {
		return ts
	}
	return fallback
}
