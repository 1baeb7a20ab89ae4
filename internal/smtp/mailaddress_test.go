package smtp

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseMailbox(t *testing.T) {

	Convey("Testing ParseMailbox()", t, func() {

		mails := []struct {
			str      string
			expected string
		}{
			{"FROM:<bob@example.com>", "bob@example.com"},
			{"FROM: <bob@example.com>", "bob@example.com"},
			{"TO:<bob@example.com> SIZE=1024", "bob@example.com"},
			{"<bob@example.com>", "bob@example.com"},
			{"bob@example.com", "bob@example.com"},
		}

		for _, m := range mails {
			mailbox, err := ParseMailbox(m.str)
			So(err, ShouldEqual, nil)
			So(mailbox, ShouldEqual, m.expected)
		}

	})

	Convey("Testing ParseMailbox() with a null reverse-path", t, func() {

		mailbox, err := ParseMailbox("FROM:<>")
		So(err, ShouldEqual, nil)
		So(mailbox, ShouldEqual, "")

	})

	Convey("Testing ParseMailbox() rejects malformed input", t, func() {

		bad := []string{
			"FROM:<bob@example.com",
			"FROM:",
			"",
			"FROM:<not-an-address>",
		}

		for _, b := range bad {
			_, err := ParseMailbox(b)
			So(err, ShouldEqual, ErrBadMailbox)
		}

	})

}

func TestValidMailbox(t *testing.T) {

	Convey("Testing validMailbox() length limits", t, func() {

		So(validMailbox("bob@example.com"), ShouldEqual, true)
		So(validMailbox("no-at-sign"), ShouldEqual, false)

		longLocal := ""
		for i := 0; i < 65; i++ {
			longLocal += "a"
		}
		So(validMailbox(longLocal+"@example.com"), ShouldEqual, false)

	})

}
