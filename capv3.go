// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"encoding/base64"
	"strings"
)

// capState tracks the IRCv3 CAP/STARTTLS/SASL negotiation in progress
// for one logon attempt. Reset at the start of every Connect.
type capState struct {
	offered   map[string]string // name -> optional data string
	requested []string
	acked     map[string]bool

	sawLS       bool
	starttls    bool // true once STARTTLS has been sent and we're waiting on 670/691
	saslStage   string
	phaseDone   bool // CAP END (or no-CAP) sent; registration may proceed
}

func newCapState() *capState {
	return &capState{
		offered: make(map[string]string),
		acked:   make(map[string]bool),
	}
}

// registerCapHandlers installs the built-in IRCv3 handlers: CAP,
// AUTHENTICATE, 670, 691, 903, 902/904/905/908.
func (cl *Client) registerCapHandlers() {
	cl.disp.RegisterBuiltin("CAP", TagV3, (*Client).handleCAP)
	cl.disp.RegisterBuiltin("AUTHENTICATE", TagV3, (*Client).handleAUTHENTICATE)
	cl.disp.RegisterBuiltin("670", TagV3, (*Client).handleSTARTTLSOk)
	cl.disp.RegisterBuiltin("691", TagV3, (*Client).handleSTARTTLSFail)
	cl.disp.RegisterBuiltin("903", TagV3, (*Client).handleSASLOk)
	cl.disp.RegisterBuiltin("902", TagV3, (*Client).handleSASLFail)
	cl.disp.RegisterBuiltin("904", TagV3, (*Client).handleSASLFail)
	cl.disp.RegisterBuiltin("905", TagV3, (*Client).handleSASLFail)
	cl.disp.RegisterBuiltin("908", TagV3, (*Client).handleSASLUnknownMech)
}

// wantsCapabilities reports whether the configured client needs a CAP
// LS/REQ exchange at all: explicit caps requested, STARTTLS via CAP, or
// SASL.
func (c *Config) wantsCapabilities() bool {
	return len(c.RequestCaps) > 0 || c.STARTTLSMode == STARTTLSViaCAP || c.SASLMechanism != ""
}

// beginCapNegotiation sends CAP LS 302, opening the negotiation.
func (cl *Client) beginCapNegotiation() error {
	cl.caps = newCapState()
	return cl.writeRaw("CAP LS 302")
}

// handleCAP handles LS accumulation across multi-line responses
// (continuation marked by a literal "*" at the argument index preceding
// the trailing cap list), then REQ, then ACK/NAK handling including the
// STARTTLS/SASL follow-on.
func (cl *Client) handleCAP(msg *Message) Outcome {
	if cl.caps == nil {
		cl.caps = newCapState()
	}
	if len(msg.Params) < 2 {
		return ProtoErrBit
	}
	sub := strings.ToUpper(msg.Params[1])

	switch sub {
	case "LS":
		more := len(msg.Params) >= 3 && msg.Params[2] == "*"
		cl.caps.sawLS = true
		for _, tok := range strings.Fields(msg.Trailing()) {
			name, val, _ := strings.Cut(tok, "=")
			cl.caps.offered[name] = val
		}
		if more {
			return MoreCaps
		}
		return cl.afterCapLS()

	case "ACK":
		for _, name := range strings.Fields(msg.Trailing()) {
			cl.caps.acked[strings.TrimPrefix(name, "-")] = true
		}
		for _, want := range cl.caps.requested {
			if !cl.caps.acked[want] {
				cl.lastErr = newErr(KindCap, "server did not ack requested capability "+want, nil)
				return CapErrBit | CantProceed
			}
		}
		return cl.afterCapAck()

	case "NAK":
		cl.lastErr = newErr(KindCap, "server NAKed capability request: "+msg.Trailing(), nil)
		return CapErrBit | CantProceed

	default:
		return 0
	}
}

// afterCapLS runs once LS accumulation is complete: check must-haves,
// then send CAP REQ.
func (cl *Client) afterCapLS() Outcome {
	for _, must := range cl.mustHaveCaps() {
		if _, ok := cl.caps.offered[must]; !ok {
			cl.lastErr = newErr(KindCap, "server did not offer must-have capability "+must, nil)
			return CapErrBit | CantProceed
		}
	}

	requested := append([]string{}, cl.Config.RequestCaps...)
	if cl.Config.STARTTLSMode == STARTTLSViaCAP {
		if _, ok := cl.caps.offered["tls"]; ok {
			requested = append(requested, "tls")
		}
	}
	if cl.Config.SASLMechanism != "" {
		if _, ok := cl.caps.offered["sasl"]; ok {
			requested = append(requested, "sasl")
		}
	}
	if len(requested) == 0 {
		cl.caps.phaseDone = true
		if err := cl.writeRaw("CAP END"); err != nil {
			return IoErrBit | CantProceed
		}
		return 0
	}
	cl.caps.requested = requested
	if err := cl.writeRaw("CAP REQ :" + strings.Join(requested, " ")); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

func (cl *Client) mustHaveCaps() []string {
	var must []string
	if cl.Config.SASLMustHave {
		must = append(must, "sasl")
	}
	return must
}

// afterCapAck runs once every requested cap has been ACKed: drive the
// STARTTLS-via-CAP / SASL follow-on, or finish with CAP END.
func (cl *Client) afterCapAck() Outcome {
	if cl.caps.acked["tls"] && !cl.caps.starttls {
		cl.caps.starttls = true
		if err := cl.writeRaw("STARTTLS"); err != nil {
			return IoErrBit | CantProceed
		}
		return 0
	}
	if cl.caps.acked["sasl"] && cl.caps.saslStage == "" {
		cl.caps.saslStage = cl.Config.SASLMechanism
		if err := cl.writeRaw("AUTHENTICATE " + cl.Config.SASLMechanism); err != nil {
			return IoErrBit | CantProceed
		}
		return 0
	}
	cl.caps.phaseDone = true
	if err := cl.writeRaw("CAP END"); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

// handleSTARTTLSOk handles 670: upgrade the connection to TLS, then
// resume CAP negotiation (SASL follow-on or CAP END) or, for the
// non-CAP "immediate" STARTTLS path, signal StarttlsOver so Connect
// resumes its own flow.
func (cl *Client) handleSTARTTLSOk(msg *Message) Outcome {
	if err := cl.conn.UpgradeTLS(); err != nil {
		cl.lastErr = err.(*Error)
		return CapErrBit | CantProceed
	}
	if cl.caps != nil && cl.caps.starttls {
		return cl.afterCapAck()
	}
	cl.starttlsImmediateDone = true
	return StarttlsOver
}

// handleSTARTTLSFail handles 691: a must-have failure.
func (cl *Client) handleSTARTTLSFail(msg *Message) Outcome {
	cl.lastErr = newErr(KindTLS, "server rejected STARTTLS", nil)
	return CapErrBit | CantProceed
}

// handleAUTHENTICATE responds to the server's "AUTHENTICATE +" prompt
// by sending the SASL PLAIN blob: base64 of user\0user\0pass.
func (cl *Client) handleAUTHENTICATE(msg *Message) Outcome {
	if len(msg.Params) == 0 || msg.Params[0] != "+" {
		return 0
	}
	if cl.Config.SASLMechanism != "PLAIN" {
		return 0
	}
	blob := cl.Config.SASLUser + "\x00" + cl.Config.SASLUser + "\x00" + cl.Config.SASLPass
	encoded := base64.StdEncoding.EncodeToString([]byte(blob))
	if err := cl.writeRaw("AUTHENTICATE " + encoded); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

// handleSASLOk handles 903 "SASL authentication successful": finish
// SASL and send CAP END.
func (cl *Client) handleSASLOk(msg *Message) Outcome {
	cl.caps.phaseDone = true
	if err := cl.writeRaw("CAP END"); err != nil {
		return IoErrBit | CantProceed
	}
	return SaslComplete
}

// handleSASLFail handles 902/904/905: fail hard if SASL is a must-have,
// otherwise proceed without it.
func (cl *Client) handleSASLFail(msg *Message) Outcome {
	if cl.Config.SASLMustHave {
		cl.lastErr = newErr(KindAuth, "SASL authentication failed: "+msg.Trailing(), nil)
		return SaslErrBit | AuthErrBit | CantProceed
	}
	cl.caps.phaseDone = true
	if err := cl.writeRaw("CAP END"); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

// handleSASLUnknownMech handles 908 (RPL_SASLMECHS): same
// must-have/optional split as handleSASLFail.
func (cl *Client) handleSASLUnknownMech(msg *Message) Outcome {
	return cl.handleSASLFail(msg)
}
