package smtp

import (
	"bufio"
	"fmt"
)

// MaxLineLength is the maximum length (per RFC 5321 §4.5.3.1.4, including
// the trailing CRLF) a DATA payload line may reach before the session
// rejects it.
const MaxLineLength = 1000

// MaxCommandLineLength is the maximum length (per RFC 5321 §4.5.3.1.1,
// including the trailing CRLF) a command line may reach before the
// session rejects it without attempting to parse it.
const MaxCommandLineLength = 512

// Framer reads CRLF-terminated command lines and DATA payload lines from a
// buffered byte stream, and writes buffered SMTP responses.
type Framer struct {
	rw *bufio.ReadWriter
}

// NewFramer wraps an already-buffered reader/writer pair. The caller is
// responsible for constructing bufio.Reader/Writer around the underlying
// net.Conn (plain or TLS) so that a STARTTLS upgrade can simply rebuild a
// new Framer around a new bufio pair without this type needing to know
// about net.Conn at all.
func NewFramer(r *bufio.Reader, w *bufio.Writer) *Framer {
	return &Framer{rw: bufio.NewReadWriter(r, w)}
}

// ReadLine reads bytes up to and including the next '\n', returning them
// without a length cap of its own -- callers (the session state machine)
// enforce RFC 5321's line-length limits.
func (f *Framer) ReadLine() ([]byte, error) {
	line, err := f.rw.ReadBytes('\n')
	if err != nil {
		return line, Wrap(KindSysIO, err)
	}
	return line, nil
}

// WriteResponse renders and buffers an SMTP response. It does not flush;
// callers must call Flush() before the next ReadLine().
func (f *Framer) WriteResponse(resp Response) error {
	if resp.NoReply {
		return nil
	}
	if len(resp.Lines) == 0 {
		_, err := fmt.Fprintf(f.rw, "%d %s\r\n", resp.Code, resp.Message)
		return Wrap(KindSysIO, err)
	}

	last := len(resp.Lines) - 1
	for i, line := range resp.Lines {
		sep := byte('-')
		if i == last {
			sep = ' '
		}
		if _, err := fmt.Fprintf(f.rw, "%d%c%s\r\n", resp.Code, sep, line); err != nil {
			return Wrap(KindSysIO, err)
		}
	}
	return nil
}

// Flush writes any buffered response bytes to the underlying stream.
func (f *Framer) Flush() error {
	return Wrap(KindSysIO, f.rw.Flush())
}
