package mail

// Token is the protocol-specific identity of one message.
//
// Two tokens refer to the same message iff their keys are equal. The ordering given by Compare relies on
// volatile, session-local state and is only meaningful within the current connection.
type Token interface {
	// Key returns the durable identity of the message.
	Key() string

	// Compare orders tokens by their session index.
	Compare(other Token) int

	// Update copies the volatile fields of other into this token if both refer to the same message.
	Update(other Token)

	// Clone returns a copy that does not share mutable state with the receiver.
	Clone() Token

	// Loadable reports whether the token can currently be used to issue a fetch.
	Loadable() bool

	// ContainedWithin reports whether the message lives in the given folder.
	ContainedWithin(folder *Folder) bool
}

// SameMessage reports whether both tokens identify the same message.
func SameMessage(a, b Token) bool {
	if a == nil || b == nil {
		return false
	}

	return a.Key() == b.Key()
}

// TokenKeys returns the identity keys of the given tokens in order.
func TokenKeys(tokens []Token) []string {
	keys := make([]string, 0, len(tokens))

	for _, token := range tokens {
		keys = append(keys, token.Key())
	}

	return keys
}
