// Package gateway owns the multi-listener accept loop: one goroutine per
// configured address, one goroutine per accepted connection, with
// context cancellation and a sync.WaitGroup to drain in-flight
// connections on shutdown (daemonizing and signal-reload machinery
// left out).
package gateway

import (
	"bytes"
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/plustik/kutsche/internal/conn"
	"github.com/plustik/kutsche/internal/kconfig"
	"github.com/plustik/kutsche/internal/smtp"
)

// Serve binds every listener in cfg.LocalAddrs and runs their accept
// loops until ctx is cancelled, then waits for in-flight connections to
// finish. Returns smtp.ErrNoListener if not a single address could be
// bound.
func Serve(ctx context.Context, cfg *kconfig.Config, log *logrus.Entry) error {
	var wg sync.WaitGroup
	bound := 0

	for _, l := range cfg.LocalAddrs {
		ln, err := net.Listen("tcp", l.Addr)
		if err != nil {
			log.WithError(err).WithField("addr", l.Addr).Error("could not bind listener")
			continue
		}
		bound++

		wg.Add(1)
		go func(l kconfig.Listener, ln net.Listener) {
			defer wg.Done()
			acceptLoop(ctx, ln, l, cfg, log.WithField("addr", l.Addr))
		}(l, ln)
	}

	if bound == 0 {
		return smtp.Wrap(smtp.KindSmtp, smtp.ErrNoListener)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// acceptLoop accepts connections on ln until ctx is cancelled or the
// listener is closed, spawning one goroutine per connection. Temporary
// accept errors are logged and the loop continues rather than tearing
// down the listener.
func acceptLoop(ctx context.Context, ln net.Listener, l kconfig.Listener, cfg *kconfig.Config, log *logrus.Entry) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var connWg sync.WaitGroup
	defer connWg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				log.WithError(err).Warn("temporary accept error")
				continue
			}
			log.WithError(err).Error("listener closed")
			return
		}

		connWg.Add(1)
		go func(c net.Conn) {
			defer connWg.Done()
			handleConn(ctx, c, l, cfg, log)
		}(c)
	}
}

func handleConn(ctx context.Context, c net.Conn, l kconfig.Listener, cfg *kconfig.Config, log *logrus.Entry) {
	peerLog := log.WithField("peer", c.RemoteAddr())
	buf := &bytes.Buffer{}

	result, err := conn.Handle(ctx, c, l, cfg.TLSConfig, buf, peerLog)
	if err != nil {
		peerLog.WithError(err).Warn("connection ended with an error")
		return
	}
	if result.Err != nil {
		peerLog.WithError(result.Err).Debug("connection ended without a completed mail")
		return
	}

	Dispatch(ctx, result, cfg.DestMap, peerLog)
}
