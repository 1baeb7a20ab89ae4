package smtp

import (
	"bytes"
	"strings"

	"github.com/plustik/kutsche/internal/email"
)

// SessionState tracks where a connection sits in the SMTP command
// sequence: Greeted -> AwaitingMail -> AwaitingRcpt -> AwaitingData ->
// ReceivingData -> AwaitingMail | Closed. A STARTTLS upgrade is not a
// state of its own; it is signalled to the handler via ActionUpgradeTLS.
type SessionState int

const (
	StateGreeted SessionState = iota
	StateAwaitingMail
	StateAwaitingRcpt
	StateAwaitingData
	StateReceivingData
	StateClosed
)

// Action tells the connection handler what to do once a Response has
// been written and flushed.
type Action int

const (
	ActionContinue Action = iota
	ActionClose
	ActionUpgradeTLS
)

// Response is a single- or multi-line SMTP reply plus the next action the
// handler must take.
type Response struct {
	NoReply bool // true while a DATA payload line produced no reply of its own
	Code    int
	Message string
	Lines   []string // non-nil only for multi-line replies (EHLO)
	Action  Action
}

func reply(code int, msg string) Response {
	return Response{Code: code, Message: msg}
}

func replyClose(code int, msg string) Response {
	return Response{Code: code, Message: msg, Action: ActionClose}
}

// Result is what DATA_END (or connection close with nothing received)
// deposits into the session's result slot -- the sole channel by which the
// synchronous command callback communicates a finished mail (or a
// terminal failure) out to the surrounding connection handler. A mutable
// struct field, not a one-shot channel, since the session itself never
// runs on its own goroutine.
type Result struct {
	Email email.SmtpEmail
	Err   error
}

// Session drives one SMTP connection's command/response exchange. It is
// confined to a single goroutine and performs no I/O of its own: Process
// is a pure, synchronous state transition that never blocks or suspends.
type Session struct {
	state      SessionState
	hostname   string
	from       string
	haveFrom   bool
	to         []string
	dataBuf    *bytes.Buffer
	resultSet  bool
	result     Result
	tlsActive  bool
	startTLSOK bool
	onWarn     func(string)
}

// NewSession creates a session bound to the given hostname (used in the
// greeting/HELO response) and a caller-owned, reusable DATA buffer
// borrowed for the lifetime of the connection handler that constructs
// the session.
func NewSession(hostname string, startTLSAllowed bool, dataBuf *bytes.Buffer) *Session {
	return &Session{
		state:      StateGreeted,
		hostname:   hostname,
		dataBuf:    dataBuf,
		startTLSOK: startTLSAllowed,
		result:     Result{Err: ErrNoDataEnd},
		onWarn:     func(string) {},
	}
}

// OnWarn installs a callback invoked for non-fatal protocol anomalies the
// caller may want to log (e.g. "DATA buffer was already non-empty").
func (s *Session) OnWarn(f func(string)) {
	if f != nil {
		s.onWarn = f
	}
}

// Greeting returns the initial 220 banner. Must be sent (and flushed)
// before the first ReadLine.
func (s *Session) Greeting() Response {
	return reply(220, s.hostname+" kutsche ESMTP ready")
}

// TLSActivated must be called by the connection handler immediately after a
// successful STARTTLS handshake, before resuming the Process loop. It does
// not reset the envelope -- RFC 5321 mandates that via EHLO/RSET, not
// STARTTLS itself, so the reset is left to the client issuing EHLO again
// post-handshake.
func (s *Session) TLSActivated() {
	s.tlsActive = true
}

// Result returns the session's result slot. Must be read only after the
// connection has closed (or after a complete mail has been deposited).
func (s *Session) Result() Result {
	return s.result
}

func (s *Session) reset() {
	s.from = ""
	s.haveFrom = false
	s.to = nil
	s.state = StateAwaitingMail
}

// Process feeds one CRLF-terminated line (an SMTP command line or a DATA
// payload line) to the session and returns the response to send. It never
// performs I/O.
func (s *Session) Process(line []byte) Response {
	if s.state == StateReceivingData {
		if len(line) > MaxLineLength {
			return s.dataLineTooLong()
		}
		return s.processDataLine(line)
	}

	if len(line) > MaxCommandLineLength {
		return reply(500, "Line too long")
	}

	verb, args := splitCommand(line)

	switch verb {
	case "HELO":
		s.reset()
		return reply(250, "OK")
	case "EHLO":
		s.reset()
		lines := []string{s.hostname, "8BITMIME"}
		if s.startTLSOK && !s.tlsActive {
			lines = append(lines, "STARTTLS")
		}
		return Response{Code: 250, Lines: lines}
	case "MAIL":
		return s.processMail(args)
	case "RCPT":
		return s.processRcpt(args)
	case "DATA":
		return s.processDataStart(args)
	case "AUTH":
		return s.processAuth(args)
	case "STARTTLS":
		return s.processStartTLS()
	case "RSET":
		s.reset()
		return reply(250, "OK")
	case "NOOP":
		return reply(250, "OK")
	case "QUIT":
		return replyClose(221, "Bye")
	case "":
		// Blank/unparsable line; treat as an unknown command per RFC 5321 §4.2.4.
		return reply(500, "Command unrecognized")
	default:
		return reply(500, "Command unrecognized")
	}
}

func (s *Session) processMail(args string) Response {
	mailbox, err := ParseMailbox(args)
	if err != nil {
		return reply(550, "bad mailbox")
	}
	s.from = mailbox
	s.haveFrom = true
	s.to = nil
	s.state = StateAwaitingRcpt
	return reply(250, "OK")
}

func (s *Session) processRcpt(args string) Response {
	if !s.haveFrom {
		return reply(503, "Need MAIL before RCPT")
	}
	mailbox, err := ParseMailbox(args)
	if err != nil {
		return reply(550, "bad mailbox")
	}
	s.to = append(s.to, mailbox)
	s.state = StateAwaitingRcpt
	return reply(250, "OK")
}

func (s *Session) processDataStart(args string) Response {
	if !s.haveFrom {
		return reply(503, "Need MAIL before DATA")
	}
	if len(s.to) < 1 {
		return reply(503, "Need RCPT before DATA")
	}
	if s.dataBuf.Len() != 0 {
		s.onWarn("DATA buffer was not empty at DATA_START; clearing it")
	}
	s.dataBuf.Reset()
	s.state = StateReceivingData
	return reply(354, "Start mail input; end with <CRLF>.<CRLF>")
}

// processDataLine appends one line of DATA payload to the shared buffer,
// un-stuffing a leading dot per RFC 5321 §4.5.2, and detects the
// terminating "." line. Operates one ReadLine-call at a time rather than
// in its own loop, since Process must not block and so cannot itself
// read more input to find the terminator.
func (s *Session) processDataLine(line []byte) Response {
	if isDotTerminator(line) {
		return s.dataEnd()
	}

	unstuffed := line
	if len(line) > 0 && line[0] == '.' {
		unstuffed = line[1:]
	}
	s.dataBuf.Write(unstuffed)
	return Response{Action: ActionContinue, NoReply: true}
}

func isDotTerminator(line []byte) bool {
	return bytes.Equal(line, []byte(".\r\n")) || bytes.Equal(line, []byte(".\n"))
}

// dataLineTooLong fails the mail currently being received because one of
// its DATA lines exceeded MaxLineLength, the way dataEnd fails it for a
// missing Message-ID -- a duplicate cycle after an already-completed mail
// still reports 503 instead of masking it with a line-length error.
func (s *Session) dataLineTooLong() Response {
	if s.resultSet {
		s.reset()
		return reply(503, "mail already received on this session; RSET first")
	}
	s.result = Result{Err: Wrap(KindSmtp, ErrLineTooLong)}
	s.reset()
	return reply(552, "line too long")
}

func (s *Session) dataEnd() Response {
	// processDataLine never writes the dot-terminator line into dataBuf,
	// so the buffer already ends at the body's own trailing CRLF.
	raw := append([]byte(nil), s.dataBuf.Bytes()...)

	if s.resultSet {
		s.result = Result{Err: Wrap(KindSmtp, ErrDuplicateResult)}
		s.reset()
		return reply(503, "mail already received on this session; RSET first")
	}

	content, err := email.New(raw)
	if err != nil {
		s.result = Result{Err: Wrap(KindMailParsing, err)}
		s.reset()
		return reply(554, "could not parse message / missing Message-ID")
	}

	s.result = Result{
		Email: email.SmtpEmail{
			From:    s.from,
			To:      append([]string(nil), s.to...),
			Content: content,
		},
	}
	s.resultSet = true
	s.reset()
	return reply(250, "OK: queued")
}

func (s *Session) processAuth(args string) Response {
	fields := strings.Fields(args)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "PLAIN") {
		return reply(504, "Unrecognized authentication type")
	}
	return reply(535, "invalid credentials")
}

func (s *Session) processStartTLS() Response {
	if !s.startTLSOK || s.tlsActive {
		return reply(502, "STARTTLS not available")
	}
	return Response{Code: 220, Message: "Go ahead", Action: ActionUpgradeTLS}
}

// splitCommand splits a raw command line into its verb and the remainder
// of the line, trimmed of CRLF.
func splitCommand(line []byte) (verb string, args string) {
	s := strings.TrimRight(string(line), "\r\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		return strings.ToUpper(s[:idx]), strings.TrimSpace(s[idx+1:])
	}
	return strings.ToUpper(s), ""
}
