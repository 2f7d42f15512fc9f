package domain

import "strings"

// CultureCategory classifies a culture record.
type CultureCategory string

const (
	CultureTradition    CultureCategory = "tradition"
	CultureLanguage     CultureCategory = "language"
	CultureCommunity    CultureCategory = "community"
	CultureHeritageSite CultureCategory = "heritage-site"
	CultureOther        CultureCategory = "other"
)

// ParseCultureCategory maps a raw value onto the enum, defaulting to CultureOther.
func ParseCultureCategory(raw string) CultureCategory {
	switch c := CultureCategory(normalize(raw)); c {
	case CultureTradition, CultureLanguage, CultureCommunity, CultureHeritageSite:
		return c
	default:
		return CultureOther
	}
}

// ExhibitionCategory classifies an exhibition record.
type ExhibitionCategory string

const (
	ExhibitionArt      ExhibitionCategory = "art"
	ExhibitionHistory  ExhibitionCategory = "history"
	ExhibitionCeremony ExhibitionCategory = "ceremony"
	ExhibitionMusic    ExhibitionCategory = "music"
	ExhibitionCraft    ExhibitionCategory = "craft"
	ExhibitionLanguage ExhibitionCategory = "language"
	ExhibitionOther    ExhibitionCategory = "other"
)

// ParseExhibitionCategory maps a raw value onto the enum, defaulting to ExhibitionOther.
func ParseExhibitionCategory(raw string) ExhibitionCategory {
	switch c := ExhibitionCategory(normalize(raw)); c {
	case ExhibitionArt, ExhibitionHistory, ExhibitionCeremony, ExhibitionMusic, ExhibitionCraft, ExhibitionLanguage:
		return c
	default:
		return ExhibitionOther
	}
}

// ResourceType classifies a resource record.
type ResourceType string

const (
	ResourceDocument ResourceType = "document"
	ResourceAudio    ResourceType = "audio"
	ResourceVideo    ResourceType = "video"
	ResourceImage    ResourceType = "image"
	ResourceLink     ResourceType = "link"
	ResourceModel    ResourceType = "model"
)

// ParseResourceType maps a raw value onto the enum, defaulting to ResourceDocument.
func ParseResourceType(raw string) ResourceType {
	switch t := ResourceType(normalize(raw)); t {
	case ResourceAudio, ResourceVideo, ResourceImage, ResourceLink, ResourceModel:
		return t
	default:
		return ResourceDocument
	}
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
