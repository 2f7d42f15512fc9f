package adapter

import (
	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
)

type artifactContent struct {
	Artifact    bool   `json:"artifact"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Culture     string `json:"culture"`
	Origin      string `json:"origin"`
}

// Artifacts decodes kind 1063 file-metadata events marked as artifacts,
// either by a t=artifact tag or by "artifact": true in the content.
func (a *Adapter) Artifacts(events []*protocol.Event) []domain.Artifact {
	return decodeBatch(a, "artifacts", protocol.KindFileMetadata, events, a.DecodeArtifact)
}

// DecodeArtifact decodes a single artifact. File-metadata events that are not
// artifacts return ErrNotApplicable. Plain-text content is the description.
func (a *Adapter) DecodeArtifact(ev *protocol.Event) (domain.Artifact, error) {
	var c artifactContent
	if isJSONObject(ev.Content) {
		if err := a.decodeContent("artifact", ev, &c); err != nil {
			return domain.Artifact{}, decodeError("artifacts", ev, err)
		}
	} else {
		c.Description = ev.Content
	}

	if !c.Artifact && !hasTopic(ev, "artifact") {
		return domain.Artifact{}, decodeError("artifacts", ev, ErrNotApplicable)
	}

	out := domain.Artifact{
		Source:      source(ev),
		Name:        tag(ev, "name", tag(ev, "title", c.Name)),
		Description: tag(ev, "summary", c.Description),
		URL:         tag(ev, "url", c.URL),
		MimeType:    tag(ev, "m", ""),
		Checksum:    tag(ev, "x", ""),
		Thumbnail:   tag(ev, "thumb", ""),
		Culture:     tag(ev, "culture", c.Culture),
		Origin:      tag(ev, "origin", c.Origin),
	}
	if out.Name == "" {
		return domain.Artifact{}, decodeError("artifacts", ev, missingField("name"))
	}
	if out.URL == "" {
		return domain.Artifact{}, decodeError("artifacts", ev, missingField("url"))
	}
	return out, nil
}

func hasTopic(ev *protocol.Event, topic string) bool {
	for _, t := range protocol.TagValues(ev, "t") {
		if t == topic {
			return true
		}
	}
	return false
}
