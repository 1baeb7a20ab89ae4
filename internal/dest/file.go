package dest

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/plustik/kutsche/internal/email"
	"github.com/plustik/kutsche/internal/smtp"
)

// FileDestination writes each received email as a single flat file named
// after its Message-ID inside a base directory.
type FileDestination struct {
	basePath string
	log      *logrus.Entry
}

// NewFileDestination constructs a FileDestination rooted at path, which
// must already exist as a directory.
func NewFileDestination(path string, log *logrus.Entry) (*FileDestination, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, smtp.Wrap(smtp.KindSysIO, smtp.ErrNotDir)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FileDestination{basePath: path, log: log}, nil
}

// WriteEmail creates a new file named after e.MessageID with
// O_WRONLY|O_CREATE|O_EXCL, so two mails sharing a Message-ID collide
// loudly instead of one silently overwriting the other.
func (d *FileDestination) WriteEmail(ctx context.Context, e *email.Email) error {
	destPath := filepath.Join(d.basePath, e.MessageID)

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return smtp.Wrap(smtp.KindSysIO, smtp.ErrAlreadyExists)
		}
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(e.MessageID); err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if _, err := w.Write(e.Raw); err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}
	if err := w.Flush(); err != nil {
		return smtp.Wrap(smtp.KindSysIO, err)
	}

	d.log.WithField("message_id", e.MessageID).Info("wrote email to filesystem")
	return nil
}
