// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// STARTTLSMode selects how (and whether) Client negotiates an in-band
// TLS upgrade.
type STARTTLSMode int

const (
	STARTTLSOff STARTTLSMode = iota
	STARTTLSViaCAP
	STARTTLSImmediate
)

// Config configures a Client. Changes made between Connect calls only
// take effect on the next Connect: Client reads Config once, at the
// very top of Connect, and otherwise ignores mutations made while a
// connection is already up.
type Config struct {
	// Server endpoint.
	Server string
	Port   uint16
	UseTLS bool
	TLSConfig *tls.Config

	// Proxy, if non-nil, is dialed instead of Server, with the matching
	// handshake run once the transport connects.
	Proxy *Proxy

	// LocalAddr optionally binds the outbound socket's local address.
	LocalAddr string

	// Logon identity.
	Password string
	Nick     string
	Uname    string
	Fname    string
	UserModeFlags string // the numeric flags field of the USER line, e.g. "0" or "8".

	// ServiceConnect switches the logon line from NICK+USER to SERVICE.
	ServiceConnect bool
	ServiceDist    string
	ServiceType    string
	ServiceInfo    string

	// WebIRC, if non-empty, is sent verbatim immediately after
	// transport+TLS establishment, before PASS. Used by gateways relaying
	// a client's real address to the ircd.
	WebIRC string

	// Timeouts.
	ConnectSoftTimeout time.Duration
	ConnectHardTimeout time.Duration
	LogonTimeout       time.Duration
	PingDelay          time.Duration
	PingTimeout        time.Duration

	// AllowFlood disables the conservative outbound send pacing.
	AllowFlood bool

	// IRCv3.
	RequestCaps   []string
	STARTTLSMode  STARTTLSMode
	SASLMechanism string
	SASLUser      string
	SASLPass      string
	SASLMustHave  bool

	// EnableTracking turns on the channel/user Tracker once the first
	// 005 CASEMAPPING is seen.
	EnableTracking bool

	// Dumb, when true, registers no built-in protocol handlers at all
	// -- only framing. Useful for callers that want to drive the whole
	// protocol themselves off of raw Read results.
	Dumb bool

	// NickMutator proposes a replacement nick on 432/433/436/437. An
	// empty or unchanged return value tells the client to give up.
	NickMutator func(oldNick string) (newNick string)

	// Debug receives library diagnostic output; defaults to
	// io.Discard, overridable by the GOSRSIRC_DEBUG env var (set to
	// any non-empty value to log to stderr).
	Debug io.Writer
}

func (c *Config) isValid() error {
	if c.Server == "" {
		return &ErrInvalidConfig{Reason: "Server must be set"}
	}
	if !c.ServiceConnect && c.Nick == "" {
		return &ErrInvalidConfig{Reason: "Nick must be set"}
	}
	if c.ServiceConnect && c.Nick == "" {
		return &ErrInvalidConfig{Reason: "Nick (service name) must be set"}
	}
	if c.Proxy != nil && c.Proxy.Type == ProxySOCKS4 && hostType(c.Server) == hostIPv6 {
		return &ErrInvalidConfig{Reason: "SOCKS4 proxy cannot be used with an IPv6 server literal"}
	}
	if c.UserModeFlags == "" {
		c.UserModeFlags = "0"
	}
	if c.ConnectHardTimeout == 0 {
		c.ConnectHardTimeout = 30 * time.Second
	}
	if c.LogonTimeout == 0 {
		c.LogonTimeout = 30 * time.Second
	}
	if c.PingDelay == 0 {
		c.PingDelay = 90 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 20 * time.Second
	}
	if c.Debug == nil {
		if os.Getenv("GOSRSIRC_DEBUG") != "" {
			c.Debug = os.Stderr
		} else {
			c.Debug = io.Discard
		}
	}
	return nil
}

// condReadCallback is installed by RegisterConnReadCallback.
type condReadCallback struct {
	tag string
	fn  func(msg *Message) bool
}

// Client is the public IRC object: configuration, the connection state
// machine, the dispatcher, and (optionally) the tracker, glued together.
type Client struct {
	Config Config

	conn *Conn
	disp *Dispatcher
	tracker *Tracker
	logger  *log.Logger

	mu sync.Mutex

	cm         Casemap
	sawCasemap bool
	myNick     string
	myHost     string
	version    string
	umodes     string
	cmodes     string
	prefix     Prefix
	chanModes  ChanModes
	chanTypes  string
	isupport   map[string]string
	created    time.Time

	logonConv   LogonSnapshot
	pendingNick string
	lastErr     *Error
	banned      bool
	banMessage  string
	restricted  bool
	online      bool

	caps               *capState
	starttlsImmediateDone bool

	condRead []condReadCallback

	cancelBG context.CancelFunc
	bg       *errgroup.Group
	lastPong time.Time
}

// New constructs a Client from cfg. The connection and dispatcher are
// created empty; nothing is attempted until Connect.
func New(cfg Config) *Client {
	cl := &Client{
		Config: cfg,
		conn:   NewConn(),
		disp:   NewDispatcher(),
		cm:     CasemapRFC1459,
		prefix: DefaultPrefix,
	}
	return cl
}

func (cl *Client) writeRaw(line string) error {
	cl.debugf("--> %s", line)
	return cl.conn.Write([]byte(line))
}

func (cl *Client) debugf(format string, args ...any) {
	if cl.logger != nil {
		cl.logger.Printf(format, args...)
	}
}

func (cl *Client) enableTracking() {
	cl.tracker = NewTracker(cl.cm)
	cl.tracker.SetPrefix(cl.prefix)
	cl.tracker.SetMyNick(cl.myNick)
	cl.tracker.RegisterHandlers(cl.disp)
}

// IsOnline reports whether the client currently owns an established
// connection.
func (cl *Client) IsOnline() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.online
}

// Nick returns the client's current nick.
func (cl *Client) Nick() string { return cl.myNick }

// Host returns the own host as reported in 004's myhost field.
func (cl *Client) Host() string { return cl.myHost }

// Casemap returns the negotiated casemap (or the RFC1459 default
// before 005 is seen).
func (cl *Client) Casemap() Casemap { return cl.cm }

// Version returns the ircd version string from 004.
func (cl *Client) Version() string { return cl.version }

// UserModes returns the supported user mode letters from 004.
func (cl *Client) UserModes() string { return cl.umodes }

// ChanModes returns the supported channel mode letters from 004.
func (cl *Client) ChanModes() string { return cl.cmodes }

// ChanModeClasses returns the parsed CHANMODES=a,b,c,d classes from 005.
func (cl *Client) ChanModeClasses() ChanModes { return cl.chanModes }

// Prefix returns the parsed PREFIX=(modes)symbols value from 005, or
// DefaultPrefix before it is seen.
func (cl *Client) Prefix() Prefix { return cl.prefix }

// ISupport returns the value of an ISUPPORT (005) key, and whether it
// was seen.
func (cl *Client) ISupport(key string) (string, bool) {
	v, ok := cl.isupport[key]
	return v, ok
}

// ISupportInt parses an ISUPPORT value as an integer (e.g. NICKLEN).
func (cl *Client) ISupportInt(key string) (int, bool) {
	v, ok := cl.isupport[key]
	if !ok {
		return 0, false
	}
	return parseISupportInt(v)
}

// LastError returns the most recent fatal *Error recorded during
// Connect or Read, or nil.
func (cl *Client) LastError() *Error { return cl.lastErr }

// Banned reports whether the server sent 465 during the last logon
// attempt; BannedMessage carries its trailing text. Both persist until
// the next successful Connect.
func (cl *Client) Banned() bool          { return cl.banned }
func (cl *Client) BannedMessage() string { return cl.banMessage }

// Restricted reports whether the server sent 484 during the last logon.
func (cl *Client) Restricted() bool { return cl.restricted }

// Tracker returns the channel/user tracker, or nil if tracking was
// never enabled.
func (cl *Client) Tracker() *Tracker { return cl.tracker }

// LogonConversation returns the captured 001-004 lines of the last
// successful logon.
func (cl *Client) LogonConversation() LogonSnapshot { return cl.logonConv }

// TLSConnectionState exposes the negotiated TLS state, or
// ErrConnNotTLS if the connection isn't TLS-wrapped.
func (cl *Client) TLSConnectionState() (tls.ConnectionState, error) {
	return cl.conn.TLSConnectionState()
}

// RegisterConnReadCallback installs a callback invoked for every
// message received before LogonComplete; a false return aborts Connect.
func (cl *Client) RegisterConnReadCallback(tag string, fn func(msg *Message) bool) {
	cl.condRead = append(cl.condRead, condReadCallback{tag: tag, fn: fn})
}

// RegisterHandler installs a user pre-handler, run before built-ins.
func (cl *Client) RegisterHandler(command string, fn func(cl *Client, msg *Message) Outcome) {
	cl.disp.RegisterPre(command, fn)
}

// RegisterPostHandler installs a user post-handler, run after built-ins.
func (cl *Client) RegisterPostHandler(command string, fn func(cl *Client, msg *Message) Outcome) {
	cl.disp.RegisterPost(command, fn)
}

// Connect dials the server and carries it all the way through logon:
// transport+proxy+TLS-from-start, an optional WebIRC line, STARTTLS/CAP/
// SASL negotiation, the PASS/NICK/USER (or SERVICE) registration lines,
// and the read/dispatch loop until a handler reports LogonComplete.
func (cl *Client) Connect(ctx context.Context) error {
	if err := cl.Config.isValid(); err != nil {
		return err
	}
	if cl.IsOnline() {
		return ErrAlreadyConnected
	}

	cl.logger = log.New(cl.Config.Debug, "srsirc: ", log.LstdFlags)
	cl.resetLogonState()
	cl.registerBuiltinHandlers()

	cl.conn.SetServer(cl.Config.Server, cl.Config.Port)
	if cl.Config.Proxy != nil {
		cl.conn.SetProxy(cl.Config.Proxy.Host, cl.Config.Proxy.Port, cl.Config.Proxy.Type)
	}
	cl.conn.SetSSL(cl.Config.UseTLS)
	cl.conn.SetLocalAddr(cl.Config.LocalAddr, 0)
	if cl.Config.TLSConfig != nil {
		*cl.conn.TLSConfig() = *cl.Config.TLSConfig
	}

	if err := cl.conn.Connect(ctx, cl.Config.ConnectSoftTimeout, cl.Config.ConnectHardTimeout); err != nil {
		return err
	}

	if cl.Config.WebIRC != "" {
		if err := cl.writeRaw(cl.Config.WebIRC); err != nil {
			cl.conn.Reset()
			return err
		}
	}

	deadline := time.Now().Add(cl.Config.LogonTimeout)

	if cl.Config.STARTTLSMode == STARTTLSImmediate && cl.Config.SASLMechanism == "" {
		if err := cl.writeRaw("STARTTLS"); err != nil {
			cl.conn.Reset()
			return err
		}
		if err := cl.logonLoop(deadline, func() bool { return cl.starttlsImmediateDone }); err != nil {
			cl.conn.Reset()
			return err
		}
	}

	if cl.Config.wantsCapabilities() {
		if err := cl.beginCapNegotiation(); err != nil {
			cl.conn.Reset()
			return err
		}
		if err := cl.logonLoop(deadline, func() bool { return cl.caps != nil && cl.caps.phaseDone }); err != nil {
			cl.conn.Reset()
			return err
		}
	}

	if err := cl.sendRegistration(); err != nil {
		cl.conn.Reset()
		return err
	}

	complete := false
	if err := cl.logonLoopOutcome(deadline, &complete); err != nil {
		cl.conn.Reset()
		return err
	}
	if !complete {
		cl.conn.Reset()
		return newErr(KindTimeout, "logon did not complete before the deadline", nil)
	}

	cl.mu.Lock()
	cl.online = true
	cl.banned = false
	cl.banMessage = ""
	cl.mu.Unlock()

	cl.startBackgroundLoops()
	return nil
}

func (cl *Client) resetLogonState() {
	cl.logonConv = LogonSnapshot{}
	cl.lastErr = nil
	cl.pendingNick = cl.Config.Nick
	cl.caps = nil
	cl.starttlsImmediateDone = false
}

func (cl *Client) registerBuiltinHandlers() {
	cl.disp.UnregisterTag(TagIRC)
	cl.disp.UnregisterTag(TagV3)
	if cl.Config.Dumb {
		return
	}
	cl.registerLogonHandlers()
	cl.registerCapHandlers()
}

// sendRegistration writes the logon lines in one write: an optional
// PASS, then SERVICE or NICK+USER.
func (cl *Client) sendRegistration() error {
	var lines []byte
	if cl.Config.Password != "" {
		lines = append(lines, "PASS :"+cl.Config.Password+"\r\n"...)
	}
	if cl.Config.ServiceConnect {
		lines = append(lines, fmt.Sprintf("SERVICE %s 0 %s %s 0 :%s\r\n",
			cl.Config.Nick, cl.Config.ServiceDist, cl.Config.ServiceType, cl.Config.ServiceInfo)...)
	} else {
		lines = append(lines, "NICK "+cl.Config.Nick+"\r\n"...)
		lines = append(lines, fmt.Sprintf("USER %s %s * :%s\r\n", cl.Config.Uname, cl.Config.UserModeFlags, cl.Config.Fname)...)
	}
	cl.debugf("--> (registration, %d bytes)", len(lines))
	return cl.conn.Write(lines)
}

// logonLoop reads and dispatches messages until done() reports true or
// the deadline passes, used for the pre-registration STARTTLS/CAP
// phase where there's no LogonComplete outcome to watch for.
func (cl *Client) logonLoop(deadline time.Time, done func() bool) error {
	for !done() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return newErr(KindTimeout, "capability negotiation did not complete before the deadline", nil)
		}
		msg, err := cl.conn.Read(remaining)
		if err != nil {
			return err
		}
		if !cl.runCondRead(msg) {
			return newErr(KindProto, "connection read callback aborted connect", nil)
		}
		out := cl.disp.Dispatch(cl, msg)
		if out.Fatal() {
			if cl.lastErr != nil {
				return cl.lastErr
			}
			return newErr(KindProto, "logon handler reported a fatal outcome", nil)
		}
	}
	return nil
}

// logonLoopOutcome is logonLoop specialised for the post-registration
// phase, setting *complete when a handler returns LogonComplete.
func (cl *Client) logonLoopOutcome(deadline time.Time, complete *bool) error {
	for !*complete {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return newErr(KindTimeout, "logon did not complete before the deadline", nil)
		}
		msg, err := cl.conn.Read(remaining)
		if err != nil {
			return err
		}
		if !cl.runCondRead(msg) {
			return newErr(KindProto, "connection read callback aborted connect", nil)
		}
		out := cl.disp.Dispatch(cl, msg)
		if out.Fatal() {
			if cl.lastErr != nil {
				return cl.lastErr
			}
			return newErr(KindProto, "logon handler reported a fatal outcome", nil)
		}
		if out&LogonComplete != 0 {
			*complete = true
		}
	}
	return nil
}

func (cl *Client) runCondRead(msg *Message) bool {
	for _, cb := range cl.condRead {
		if !cb.fn(msg) {
			return false
		}
	}
	return true
}

// Read blocks for the next line, dispatches it, and returns it, or
// returns an error/timeout without dispatching anything.
func (cl *Client) Read(timeout time.Duration) (*Message, error) {
	msg, err := cl.conn.Read(timeout)
	if err != nil {
		if ircErr, ok := err.(*Error); ok && ircErr.Kind() != KindTimeout {
			cl.mu.Lock()
			cl.online = false
			cl.lastErr = ircErr
			cl.mu.Unlock()
		}
		return nil, err
	}
	cl.debugf("<-- %s", msg.String())
	cl.disp.Dispatch(cl, msg)
	return msg, nil
}

// Write queues line to the connection, used for library-initiated
// writes (PING/PONG, logon) and caller-initiated ones alike.
func (cl *Client) Write(line string) error {
	if !cl.Config.AllowFlood {
		cl.pace()
	}
	return cl.writeRaw(line)
}

// pace applies a small fixed delay between sends when flood protection
// is enabled, the simplest possible defense against triggering a
// server's excess-flood disconnect.
func (cl *Client) pace() {
	time.Sleep(50 * time.Millisecond)
}

// Disconnect tears the connection down and stops the background
// keepalive loop.
func (cl *Client) Disconnect() {
	if cl.cancelBG != nil {
		cl.cancelBG()
		cl.bg.Wait()
		cl.cancelBG = nil
	}
	cl.conn.Reset()
	if cl.tracker != nil {
		cl.tracker.Clear()
	}
	cl.mu.Lock()
	cl.online = false
	cl.mu.Unlock()
}

// startBackgroundLoops launches the PING keepalive loop on its own
// goroutine, the one piece of this client that isn't purely
// single-threaded synchronous dispatch -- the rest of the read path is
// driven entirely by the caller's own Read loop.
func (cl *Client) startBackgroundLoops() {
	ctx, cancel := context.WithCancel(context.Background())
	cl.cancelBG = cancel
	g, gctx := errgroup.WithContext(ctx)
	cl.bg = g
	g.Go(func() error { return cl.pingLoop(gctx) })
}

func (cl *Client) pingLoop(ctx context.Context) error {
	if cl.Config.PingDelay <= 0 {
		return nil
	}
	tick := time.NewTicker(cl.Config.PingDelay)
	defer tick.Stop()

	sent := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if sent && time.Since(cl.lastPong) > cl.Config.PingDelay+cl.Config.PingTimeout {
				cl.mu.Lock()
				cl.lastErr = newErr(KindTimeout, "", &TimedOutError{})
				cl.online = false
				cl.mu.Unlock()
				cl.conn.Reset()
				return &TimedOutError{}
			}
			if err := cl.writeRaw("PING :" + strconv.FormatInt(int64(rand.Int31()), 10)); err != nil {
				return err
			}
			sent = true
		}
	}
}

// handlePONG (registered lazily below) updates lastPong for pingLoop's
// timeout detection.
func (cl *Client) handlePONG(msg *Message) Outcome {
	cl.lastPong = time.Now()
	return 0
}
