// Package domain defines the cultural-heritage entities derived from relay
// events. Entities are never authoritative: each one can be rebuilt from the
// event it was decoded from.
package domain

import "time"

// Source identifies the event an entity was decoded from.
type Source struct {
	EventID   string    `json:"event_id"`
	Pubkey    string    `json:"pubkey"`
	CreatedAt time.Time `json:"created_at"`
}

// Culture is a kind 30001 record.
type Culture struct {
	Source
	DTag        string          `json:"d"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    CultureCategory `json:"category"`
	Region      string          `json:"region,omitempty"`
	Language    string          `json:"language,omitempty"`
	Image       string          `json:"image,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

// Exhibition is a kind 30002 record.
type Exhibition struct {
	Source
	DTag        string             `json:"d"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Category    ExhibitionCategory `json:"category"`
	Culture     string             `json:"culture,omitempty"`
	Location    string             `json:"location,omitempty"`
	StartDate   string             `json:"start_date,omitempty"`
	EndDate     string             `json:"end_date,omitempty"`
	Image       string             `json:"image,omitempty"`
	Artifacts   []string           `json:"artifacts,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
}

// Resource is a kind 30003 record.
type Resource struct {
	Source
	DTag        string       `json:"d"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        ResourceType `json:"type"`
	URL         string       `json:"url,omitempty"`
	Culture     string       `json:"culture,omitempty"`
	Language    string       `json:"language,omitempty"`
	License     string       `json:"license,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// ElderStory is a kind 23 long-form story.
type ElderStory struct {
	Source
	DTag        string    `json:"d,omitempty"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body"`
	Elder       string    `json:"elder,omitempty"`
	Culture     string    `json:"culture,omitempty"`
	Language    string    `json:"language,omitempty"`
	Image       string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Artifact is a kind 1063 file-metadata event marked as an artifact.
type Artifact struct {
	Source
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	MimeType    string `json:"mime_type,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Culture     string `json:"culture,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// Rating aggregates star ratings for one target event.
type Rating struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// Average returns Sum/Count, or 0 when there are no ratings.
func (r Rating) Average() float64 {
	if r.Count == 0 {
		return 0
	}
	return r.Sum / float64(r.Count)
}

// Add folds one rating value in.
func (r Rating) Add(value float64) Rating {
	return Rating{Sum: r.Sum + value, Count: r.Count + 1}
}
