// Package dest holds the destination abstraction mail is handed off to
// once a connection has finished receiving it, and the concrete
// implementations kutsche ships with.
package dest

import (
	"context"

	"github.com/plustik/kutsche/internal/email"
)

// Destination is the write contract every mail sink satisfies, regardless
// of what is behind it (a spool directory, a Maildir, a chat room).
// Implementations must tolerate concurrent calls from different
// connection-handler goroutines.
type Destination interface {
	WriteEmail(ctx context.Context, e *email.Email) error
}
