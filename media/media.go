// Package media resolves media references into render-ready results.
//
// A reference is either a bare URL or a file-metadata event. Resolution
// never fails from the caller's point of view: when nothing usable can be
// determined a typed placeholder is returned instead.
package media

import "strings"

// Category is the coarse media family used for placeholders and thumbnails.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryModel    Category = "model"
)

// Resolution sources, also used as the metric label.
const (
	SourceTags        = "tags"
	SourceContent     = "content"
	SourceProbe       = "probe"
	SourceExtension   = "extension"
	SourcePlaceholder = "placeholder"
)

// Metadata describes the media behind a URL.
type Metadata struct {
	MimeType string  `json:"mime_type,omitempty"`
	Size     int64   `json:"size,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Checksum string  `json:"checksum,omitempty"`
	Alt      string  `json:"alt,omitempty"`
	Blurhash string  `json:"blurhash,omitempty"`
	// ChecksumVerified is nil when no verification took place.
	ChecksumVerified *bool `json:"checksum_verified,omitempty"`
}

// Result is a render-ready media reference.
type Result struct {
	URL         string   `json:"url"`
	Metadata    Metadata `json:"metadata"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Category    Category `json:"category"`
	Source      string   `json:"source"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

var placeholderMimeTypes = map[Category]string{
	CategoryImage:    "image/svg+xml",
	CategoryAudio:    "audio/mpeg",
	CategoryVideo:    "video/mp4",
	CategoryDocument: "application/pdf",
	CategoryModel:    "model/gltf-binary",
}

// Placeholder returns the fixed placeholder for a category. Unknown
// categories get the document placeholder.
func Placeholder(category Category) Result {
	mimeType, ok := placeholderMimeTypes[category]
	if !ok {
		category = CategoryDocument
		mimeType = placeholderMimeTypes[category]
	}
	url := "/assets/placeholders/" + string(category) + ".svg"
	return Result{
		URL:         url,
		Metadata:    Metadata{MimeType: mimeType},
		Thumbnail:   url,
		Category:    category,
		Source:      SourcePlaceholder,
		Placeholder: true,
	}
}

// CategoryOf maps a MIME type onto a category. Anything unrecognized is a
// document.
func CategoryOf(mimeType string) Category {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImage
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryAudio
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mimeType, "model/"):
		return CategoryModel
	default:
		return CategoryDocument
	}
}

// thumbnailFor picks a thumbnail: the declared one, the image itself, or the
// category placeholder.
func thumbnailFor(declared, url string, category Category) string {
	if declared != "" {
		return declared
	}
	if category == CategoryImage {
		return url
	}
	return Placeholder(category).Thumbnail
}
