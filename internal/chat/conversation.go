package chat

import (
	"regexp"
	"strings"
)

// separator joins the two participant ids of a conversation id. Participant
// ids can never contain it, see ValidID.
const separator = "_"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ConversationID derives the id shared by every message between a and b.
// It is commutative and must be the only way conversation ids are built:
// any other encoding of the pair silently splits one conversation in two.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + separator + b
}

// OtherParticipant returns the half of conversationID that is not userID.
// For a conversation with oneself it returns userID.
func OtherParticipant(conversationID, userID string) string {
	first, second, ok := strings.Cut(conversationID, separator)
	if !ok {
		return ""
	}
	if first == userID {
		return second
	}
	return first
}

// IsParticipant reports whether userID is one of the two halves of
// conversationID.
func IsParticipant(conversationID, userID string) bool {
	first, second, ok := strings.Cut(conversationID, separator)
	return ok && (first == userID || second == userID)
}

// ValidID reports whether id has the shape of a participant identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// UserRoom is the personal room holding every session of userID.
func UserRoom(userID string) string {
	return "user:" + userID
}

// ConversationRoom is the room joined by sessions viewing conversationID.
func ConversationRoom(conversationID string) string {
	return "conv:" + conversationID
}
