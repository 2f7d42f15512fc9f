package protocol

// Event kinds consumed by the client.
const (
	KindProfile        = 0
	KindNote           = 1
	KindContactList    = 3
	KindEncryptedDM    = 4
	KindReaction       = 7
	KindLongFormStory  = 23
	KindFileMetadata   = 1063
	KindLabel          = 1985
	KindCultureRecord  = 30001
	KindExhibition     = 30002
	KindResourceRecord = 30003
)

// IsParameterizedReplaceable reports whether only the latest revision per
// (author, kind, d tag) of events of this kind is canonical.
func IsParameterizedReplaceable(kind int) bool {
	return kind >= 30000 && kind < 40000
}
