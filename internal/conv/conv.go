// Package conv derives the key that groups all messages between two participants.
package conv

const prefix = "priv_"

// ID returns the conversation key shared by two participants.
// The pair is canonicalized by lexicographic order before concatenation,
// so both sides of a conversation derive the identical key.
func ID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return prefix + a + "_" + b
}
