package services

import "context"

// Prompter shows messages to the user. Confirm blocks until the user answers;
// Notify does not wait for acknowledgement.
type Prompter interface {
	Confirm(ctx context.Context, msg string) bool
	Notify(ctx context.Context, msg string)
}

// silentPrompter declines every confirmation and drops notifications.
type silentPrompter struct{}

func (silentPrompter) Confirm(context.Context, string) bool { return false }
func (silentPrompter) Notify(context.Context, string)       {}
