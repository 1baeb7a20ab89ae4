package kconfig

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/plustik/kutsche/internal/smtp"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kutsche.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {

	Convey("Load falls back to the default bind address with no listeners configured", t, func() {

		path := writeTempConfig(t, "")
		cfg, err := Load(path)
		So(err, ShouldEqual, nil)
		So(len(cfg.LocalAddrs), ShouldEqual, 1)
		So(cfg.LocalAddrs[0].Addr, ShouldEqual, "0.0.0.0:25")
		So(cfg.LocalAddrs[0].Implicit, ShouldEqual, false)
		So(cfg.TLSConfig, ShouldEqual, nil)

	})

}

func TestLoadListenersAndDestinations(t *testing.T) {

	Convey("Load resolves explicit listeners and file destinations", t, func() {

		spoolDir := t.TempDir()
		path := writeTempConfig(t, `
bind_addresses = ["127.0.0.1:25", "127.0.0.1:465"]

[dest."alice@example.com"]
path = "`+spoolDir+`"
`)

		cfg, err := Load(path)
		So(err, ShouldEqual, nil)
		So(len(cfg.LocalAddrs), ShouldEqual, 2)
		// No tls_cert is configured, so port 465 is not implicit TLS.
		So(cfg.LocalAddrs[1].Implicit, ShouldEqual, false)
		So(cfg.DestMap["alice@example.com"], ShouldNotEqual, nil)

	})

	Convey("Load rejects a destination with neither path nor maildir", t, func() {

		path := writeTempConfig(t, `
[dest."bob@example.com"]
`)
		_, err := Load(path)
		So(err, ShouldNotEqual, nil)
		So(smtp.KindOf(err), ShouldEqual, smtp.KindConfig)

	})

	Convey("Load rejects a destination keyed by a syntactically invalid mailbox", t, func() {

		spoolDir := t.TempDir()
		path := writeTempConfig(t, `
[dest.bob]
path = "`+spoolDir+`"
`)
		_, err := Load(path)
		So(err, ShouldNotEqual, nil)
		So(smtp.KindOf(err), ShouldEqual, smtp.KindConfig)

	})

}

func TestIsImplicitTLSAddr(t *testing.T) {

	Convey("isImplicitTLSAddr matches only port 465", t, func() {

		So(isImplicitTLSAddr("127.0.0.1:465"), ShouldEqual, true)
		So(isImplicitTLSAddr("127.0.0.1:25"), ShouldEqual, false)
		So(isImplicitTLSAddr("[::1]:465"), ShouldEqual, true)

	})

}
