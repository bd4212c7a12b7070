package service

import "errors"

var (
	// ErrNotPrivileged is returned when a non-gm session attempts a privileged operation.
	ErrNotPrivileged = errors.New("operation requires the gm role")
	// ErrNotMember is returned when the local user is not part of the conversation.
	ErrNotMember = errors.New("user is not a member of the conversation")
	// ErrConversationNotFound is returned by actions that target an unknown conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound is returned by actions that target an unknown message.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotAuthor is returned when a user changes a message they did not send.
	ErrNotAuthor = errors.New("message belongs to another user")
	// ErrUnknownUser is returned when a user id is not in the directory.
	ErrUnknownUser = errors.New("unknown user")
	// ErrEmptyMessage is returned when content is empty after sanitising.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrInvalidGroup is returned when a group cannot be created as requested.
	ErrInvalidGroup = errors.New("invalid group")
	// ErrInvalidTheme is returned when a theme update carries no theme.
	ErrInvalidTheme = errors.New("theme is required")
)
