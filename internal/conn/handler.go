// Package conn drives a single accepted connection through the SMTP
// session state machine until the client disconnects or the session's
// wall-clock budget expires, using context cancellation and
// per-operation read deadlines.
package conn

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plustik/kutsche/internal/kconfig"
	"github.com/plustik/kutsche/internal/smtp"
)

// IdleTimeout bounds how long Handle waits for the next line from the
// client before giving up on the connection.
const IdleTimeout = 5 * time.Minute

// SessionTimeout bounds the total lifetime of one connection, regardless
// of how many lines it has exchanged.
const SessionTimeout = 10 * time.Minute

// Handle drives c through the SMTP protocol until the client sends QUIT,
// the connection errors out, or a timeout fires, then returns the
// session's result slot. buf is a caller-owned, reusable DATA buffer;
// Handle resets it before use and never reallocates it.
func Handle(ctx context.Context, c net.Conn, listener kconfig.Listener, tlsConfig *tls.Config, buf *bytes.Buffer, log *logrus.Entry) (smtp.Result, error) {
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, SessionTimeout)
	defer cancel()

	if listener.Implicit {
		tlsConn := tls.Server(c, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return smtp.Result{}, smtp.Wrap(smtp.KindTLS, err)
		}
		c = tlsConn
	}

	buf.Reset()
	session := smtp.NewSession(hostnameOf(c), listener.StartTLS, buf)
	session.OnWarn(func(msg string) { log.Warn(msg) })
	if listener.Implicit {
		session.TLSActivated()
	}

	framer := smtp.NewFramer(bufio.NewReader(c), bufio.NewWriter(c))

	if err := writeAndFlush(framer, session.Greeting()); err != nil {
		return smtp.Result{}, err
	}

	for {
		deadline := time.Now().Add(IdleTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := c.SetReadDeadline(deadline); err != nil {
			return smtp.Result{}, smtp.Wrap(smtp.KindSysIO, err)
		}
		if err := ctx.Err(); err != nil {
			return smtp.Result{}, smtp.Wrap(smtp.KindSmtp, err)
		}

		line, err := framer.ReadLine()
		if err != nil {
			return session.Result(), err
		}

		resp := session.Process(line)
		if err := writeAndFlush(framer, resp); err != nil {
			return smtp.Result{}, err
		}

		switch resp.Action {
		case smtp.ActionClose:
			return session.Result(), nil
		case smtp.ActionUpgradeTLS:
			tlsConn := tls.Server(c, tlsConfig)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				return smtp.Result{}, smtp.Wrap(smtp.KindTLS, err)
			}
			c = tlsConn
			session.TLSActivated()
			framer = smtp.NewFramer(bufio.NewReader(c), bufio.NewWriter(c))
		}
	}
}

func writeAndFlush(f *smtp.Framer, resp smtp.Response) error {
	if err := f.WriteResponse(resp); err != nil {
		return err
	}
	return f.Flush()
}

func hostnameOf(c net.Conn) string {
	host, _, err := net.SplitHostPort(c.LocalAddr().String())
	if err != nil {
		return c.LocalAddr().String()
	}
	return host
}
