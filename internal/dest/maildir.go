package dest

import (
	"context"

	"github.com/sirupsen/logrus"
	maildir "github.com/sloonz/go-maildir"

	"github.com/plustik/kutsche/internal/email"
	"github.com/plustik/kutsche/internal/smtp"
)

// MaildirDestination writes each received email into a Maildir directory,
// using the Maildir tmp-then-rename convention instead of O_EXCL for
// collision safety.
type MaildirDestination struct {
	dir maildir.Dir
	log *logrus.Entry
}

// NewMaildirDestination creates (if missing) and wraps the Maildir
// directory at path.
func NewMaildirDestination(path string, log *logrus.Entry) (*MaildirDestination, error) {
	dir := maildir.Dir(path)
	if err := dir.Create(); err != nil {
		return nil, smtp.Wrap(smtp.KindSysIO, err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MaildirDestination{dir: dir, log: log}, nil
}

// WriteEmail delivers e through a Maildir Delivery. Maildir's unique
// delivery-key-per-call scheme makes collisions impossible by
// construction, so this never returns ErrAlreadyExists.
func (d *MaildirDestination) WriteEmail(ctx context.Context, e *email.Email) error {
	delivery, err := d.dir.NewDelivery()
	if err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}

	if _, err := delivery.Write([]byte(e.MessageID)); err != nil {
		delivery.Close()
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if _, err := delivery.Write([]byte("\n\n")); err != nil {
		delivery.Close()
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if _, err := delivery.Write(e.Raw); err != nil {
		delivery.Close()
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if err := delivery.Close(); err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}

	d.log.WithField("message_id", e.MessageID).Debug("wrote email to maildir")
	return nil
}
