// Package mail abstracts the outbound mail gateway. The worker authenticates
// once per run and reuses the handle for every package in the batch.
package mail

import "context"

// Message is one prepared outbound email. AttachmentPath may be empty; a
// path that no longer exists is skipped rather than failing the send.
type Message struct {
	To             string
	Subject        string
	TextBody       string
	HTMLBody       string
	AttachmentPath string
}

// Handle is an authenticated connection to the gateway.
type Handle interface {
	// Send transmits the message and returns the message id recorded for it.
	Send(ctx context.Context, msg Message) (string, error)
	Close() error
}

// Gateway authenticates against the mail provider.
type Gateway interface {
	Authenticate(ctx context.Context) (Handle, error)
}
