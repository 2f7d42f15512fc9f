package testutil

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/c360/heritagestreams/protocol"
)

// Signer signs test events with a generated key.
type Signer struct {
	t      testing.TB
	secret string
	pubkey string
}

// NewSigner generates a fresh key pair.
func NewSigner(t testing.TB) *Signer {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("derive public key: %v", err)
	}
	return &Signer{t: t, secret: sk, pubkey: pk}
}

// PubKey returns the hex public key.
func (s *Signer) PubKey() string { return s.pubkey }

// Event builds and signs an event. Each tag is given as its elements, e.g.
// []string{"d", "maori"}.
func (s *Signer) Event(kind int, createdAt int64, content string, tags ...[]string) *protocol.Event {
	s.t.Helper()
	ev := &protocol.Event{
		Kind:      kind,
		CreatedAt: nostr.Timestamp(createdAt),
		Content:   content,
		Tags:      make(nostr.Tags, 0, len(tags)),
	}
	for _, tag := range tags {
		ev.Tags = append(ev.Tags, nostr.Tag(tag))
	}
	if err := ev.Sign(s.secret); err != nil {
		s.t.Fatalf("sign event: %v", err)
	}
	return ev
}

// Tag is shorthand for a tag literal.
func Tag(elems ...string) []string { return elems }
