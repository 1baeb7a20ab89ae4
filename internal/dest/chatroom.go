package dest

import (
	"context"

	"github.com/plustik/kutsche/internal/email"
	"github.com/plustik/kutsche/internal/smtp"
)

// ChatSession is the one method this package needs from a logged-in chat
// client, kept minimal so the concrete client (Matrix or otherwise) never
// has to be imported here.
type ChatSession interface {
	SendMessage(ctx context.Context, roomID string, body []byte) error
}

// ChatRoomDestination routes a recipient to a chat room instead of a
// filesystem location. Room-id acquisition for a real chat backend is
// unfinished, so this stays an unimplemented stub with the shape a real
// client would need, rather than a guessed-at implementation.
type ChatRoomDestination struct {
	session ChatSession
	roomID  string
}

// NewChatRoomDestination builds a destination bound to an already
// authenticated session and a target room.
func NewChatRoomDestination(session ChatSession, roomID string) *ChatRoomDestination {
	return &ChatRoomDestination{session: session, roomID: roomID}
}

func (d *ChatRoomDestination) WriteEmail(ctx context.Context, e *email.Email) error {
	return smtp.Wrap(smtp.KindDestination, smtp.ErrNotImplemented)
}
