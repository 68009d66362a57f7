package generator

import "context"

// Store is the read side of the profile/conversation collaborator.
// Lookups of unknown ids return an error wrapping ErrNotFound.
type Store interface {
	UserProfile(ctx context.Context, userID string) (*Profile, error)
	ConnectionProfile(ctx context.Context, userID, connectionID string) (*Profile, error)
	// ActiveConnection returns "" when the user has no active connection.
	ActiveConnection(ctx context.Context, userID string) (string, error)
	Conversation(ctx context.Context, userID, conversationID string) (*Conversation, error)
}
