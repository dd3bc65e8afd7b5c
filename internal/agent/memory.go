package agent

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrThreadOwner is returned by a Store when a thread exists but was created
// for another resource.
var ErrThreadOwner = errors.New("thread belongs to another resource")

// Thread identifies a stored conversation.
type Thread struct {
	ID         string
	ResourceID string // owner, e.g. the gateway user ID
	Persona    string
}

// Store persists conversations across requests. A thread is bound to the
// resource that created it; reading or appending with another ResourceID
// fails with ErrThreadOwner.
type Store interface {
	// History returns up to limit of the newest messages of a thread in
	// chronological order. An unknown thread has no history.
	History(ctx context.Context, thread Thread, limit int) ([]Message, error)
	// Append adds messages to a thread, creating it on first use.
	Append(ctx context.Context, thread Thread, msgs ...Message) error
}

// CheckOwner reports ErrThreadOwner when stored was created for a resource
// other than the one in req.
func CheckOwner(stored, req Thread) error {
	if stored.ResourceID != req.ResourceID {
		return errors.Wrapf(ErrThreadOwner, "thread %q", req.ID)
	}
	return nil
}
