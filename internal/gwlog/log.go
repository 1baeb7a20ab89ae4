// Package gwlog configures the structured logger shared across kutsche's
// components.
package gwlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger. debug raises the level to logrus.DebugLevel;
// otherwise logrus.InfoLevel is used. Output always goes to out (os.Stderr
// in cmd/kutsche, or the file named by its -log flag).
func New(out io.Writer, debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Component returns a sub-logger tagged with the given component name,
// the way cmd/kutsche tags its "main" and "gateway" log lines.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Default is a package-level root logger at info level writing to
// os.Stderr. Destinations constructed without an explicit logger fall back
// to logrus's standard logger, not to Default.
var Default = New(os.Stderr, false)
