package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/plustik/kutsche/internal/dest"
	"github.com/plustik/kutsche/internal/email"
	"github.com/plustik/kutsche/internal/smtp"
)

type recordingDest struct {
	writes []string
	fail   bool
}

func (r *recordingDest) WriteEmail(ctx context.Context, e *email.Email) error {
	if r.fail {
		return errors.New("boom")
	}
	r.writes = append(r.writes, e.MessageID)
	return nil
}

func TestDispatch(t *testing.T) {

	Convey("Dispatch writes to every recipient with a mapped destination", t, func() {

		a := &recordingDest{}
		b := &recordingDest{}
		destMap := map[string]dest.Destination{
			"alice@example.com": a,
			"bob@example.com":   b,
		}

		result := smtp.Result{
			Email: email.SmtpEmail{
				To: []string{"alice@example.com", "unknown@example.com", "bob@example.com"},
				Content: email.Email{
					MessageID: "<abc@example.com>",
					Raw:       []byte("body\r\n"),
				},
			},
		}

		Dispatch(context.Background(), result, destMap, logrus.NewEntry(logrus.New()))

		So(len(a.writes), ShouldEqual, 1)
		So(len(b.writes), ShouldEqual, 1)

	})

	Convey("Dispatch keeps going past a recipient whose destination fails", t, func() {

		failing := &recordingDest{fail: true}
		ok := &recordingDest{}
		destMap := map[string]dest.Destination{
			"alice@example.com": failing,
			"bob@example.com":   ok,
		}

		result := smtp.Result{
			Email: email.SmtpEmail{
				To:      []string{"alice@example.com", "bob@example.com"},
				Content: email.Email{MessageID: "<abc@example.com>"},
			},
		}

		Dispatch(context.Background(), result, destMap, logrus.NewEntry(logrus.New()))

		So(len(ok.writes), ShouldEqual, 1)

	})

}
