package domain

import (
	"strings"
	"time"
)

// Label namespaces accepted by the taxonomy.
const (
	NamespaceRegion   = "region"
	NamespaceCulture  = "culture"
	NamespaceCategory = "category"
	NamespaceLanguage = "language"
	NamespaceType     = "type"
)

var labelNamespaces = map[string]bool{
	NamespaceRegion:   true,
	NamespaceCulture:  true,
	NamespaceCategory: true,
	NamespaceLanguage: true,
	NamespaceType:     true,
}

// LabelNamespaces returns the whitelisted namespaces in a fixed order.
func LabelNamespaces() []string {
	return []string{NamespaceRegion, NamespaceCulture, NamespaceCategory, NamespaceLanguage, NamespaceType}
}

// IsLabelNamespace reports whether ns is whitelisted.
func IsLabelNamespace(ns string) bool {
	return labelNamespaces[ns]
}

// LabelPair is one (namespace, value) classification.
type LabelPair struct {
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
}

// Key returns the "namespace:value" form used as the taxonomy key.
func (p LabelPair) Key() string {
	return p.Namespace + ":" + p.Value
}

// ParseLabelKey splits a "namespace:value" key.
func ParseLabelKey(key string) (LabelPair, bool) {
	ns, value, ok := strings.Cut(key, ":")
	if !ok || ns == "" || value == "" {
		return LabelPair{}, false
	}
	return LabelPair{Namespace: ns, Value: value}, true
}

// Label is an indexed classification with its occurrence count.
type Label struct {
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
	Count     int    `json:"count"`
}

// Key returns the "namespace:value" form.
func (l Label) Key() string {
	return l.Namespace + ":" + l.Value
}

// LabelEvent is a decoded kind 1985 event carrying whitelisted labels.
type LabelEvent struct {
	Source
	Labels  []LabelPair `json:"labels"`
	Targets []string    `json:"targets,omitempty"`
}

// ToTime converts unix seconds to UTC time.
func ToTime(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}
