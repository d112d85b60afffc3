package domain

import "context"

// Notifier asks an external system to deliver the partner invitation.
type Notifier interface {
	Name() string
	SendPartnerInvitation(ctx context.Context, email string, metadata map[string]any) error
}

type NoOpNotifier struct{}

func (NoOpNotifier) Name() string { return "noop" }

func (NoOpNotifier) SendPartnerInvitation(context.Context, string, map[string]any) error {
	return nil
}
