package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/c360/heritagestreams/domain"
	"github.com/c360/heritagestreams/protocol"
)

type storyContent struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Body     string   `json:"body"`
	Elder    string   `json:"elder"`
	Culture  string   `json:"culture"`
	Language string   `json:"language"`
	Image    string   `json:"image"`
	Tags     []string `json:"tags"`
}

// ElderStories decodes kind 23 long-form stories.
func (a *Adapter) ElderStories(events []*protocol.Event) []domain.ElderStory {
	return decodeBatch(a, "elder_stories", protocol.KindLongFormStory, events, a.DecodeElderStory)
}

// DecodeElderStory decodes a single story. Content that is not a JSON object
// is taken as the markdown body.
func (a *Adapter) DecodeElderStory(ev *protocol.Event) (domain.ElderStory, error) {
	var c storyContent
	if isJSONObject(ev.Content) {
		if err := a.decodeContent("story", ev, &c); err != nil {
			return domain.ElderStory{}, decodeError("elder_stories", ev, err)
		}
	} else {
		c.Body = ev.Content
	}

	out := domain.ElderStory{
		Source:      source(ev),
		DTag:        tag(ev, "d", ""),
		Title:       tag(ev, "title", c.Title),
		Summary:     tag(ev, "summary", c.Summary),
		Body:        c.Body,
		Elder:       tag(ev, "elder", c.Elder),
		Culture:     tag(ev, "culture", c.Culture),
		Language:    tag(ev, "language", c.Language),
		Image:       tag(ev, "image", c.Image),
		PublishedAt: publishedAt(ev),
		Tags:        topics(ev, c.Tags),
	}
	if out.Title == "" {
		return domain.ElderStory{}, decodeError("elder_stories", ev, missingField("title"))
	}
	return out, nil
}

// publishedAt reads the published_at tag, falling back to created_at.
func publishedAt(ev *protocol.Event) time.Time {
	if raw, ok := protocol.TagValue(ev, "published_at"); ok {
		if secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && secs > 0 {
			return domain.ToTime(secs)
		}
	}
	return domain.ToTime(int64(ev.CreatedAt))
}

func isJSONObject(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed))
}
