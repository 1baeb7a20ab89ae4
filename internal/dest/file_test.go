package dest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/plustik/kutsche/internal/email"
	"github.com/plustik/kutsche/internal/smtp"
)

func TestNewFileDestination(t *testing.T) {

	Convey("NewFileDestination rejects a path that is not a directory", t, func() {

		_, err := NewFileDestination(filepath.Join(t.TempDir(), "does-not-exist"), nil)
		So(err, ShouldNotEqual, nil)
		So(smtp.KindOf(err), ShouldEqual, smtp.KindSysIO)

	})

	Convey("NewFileDestination accepts an existing directory", t, func() {

		d, err := NewFileDestination(t.TempDir(), nil)
		So(err, ShouldEqual, nil)
		So(d, ShouldNotEqual, nil)

	})

}

func TestFileDestinationWriteEmail(t *testing.T) {

	Convey("WriteEmail writes the message-id header then the raw content", t, func() {

		dir := t.TempDir()
		d, err := NewFileDestination(dir, nil)
		So(err, ShouldEqual, nil)

		e := &email.Email{MessageID: "<abc@example.com>", Raw: []byte("Subject: hi\r\n\r\nbody\r\n")}
		err = d.WriteEmail(context.Background(), e)
		So(err, ShouldEqual, nil)

		content, err := os.ReadFile(filepath.Join(dir, e.MessageID))
		So(err, ShouldEqual, nil)
		So(string(content), ShouldEqual, "<abc@example.com>\n\nSubject: hi\r\n\r\nbody\r\n")

	})

	Convey("WriteEmail reports a collision on a repeated message-id", t, func() {

		dir := t.TempDir()
		d, err := NewFileDestination(dir, nil)
		So(err, ShouldEqual, nil)

		e := &email.Email{MessageID: "<dup@example.com>", Raw: []byte("body\r\n")}
		So(d.WriteEmail(context.Background(), e), ShouldEqual, nil)

		err = d.WriteEmail(context.Background(), e)
		So(err, ShouldNotEqual, nil)
		So(smtp.KindOf(err), ShouldEqual, smtp.KindSysIO)

	})

}
