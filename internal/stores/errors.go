package stores

import (
	"context"
	"errors"
)

var (
	// ErrEmptyMessage is returned when sending a blank chat message
	ErrEmptyMessage = errors.New("message is empty")
	// ErrConversationReset is returned when a reply arrives for a conversation cleared by Reset
	ErrConversationReset = errors.New("conversation was reset")
	// ErrNoOrganization is returned by member operations before an organization is selected
	ErrNoOrganization = errors.New("no organization selected")
)

func canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
