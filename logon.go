// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// LogonSnapshot holds the cloned 001-004 lines captured during logon, so
// callers can inspect the server's welcome banner after the fact without
// having registered their own handlers for it.
type LogonSnapshot [4]*Message

// registerLogonHandlers installs the built-in protocol handlers that
// drive registration: PING, NICK, ERROR, 001-005, 383, and the
// nick-collision/auth/ban/restricted numerics.
func (cl *Client) registerLogonHandlers() {
	cl.disp.RegisterBuiltin("PING", TagIRC, (*Client).handlePING)
	cl.disp.RegisterBuiltin("PONG", TagIRC, (*Client).handlePONG)
	cl.disp.RegisterBuiltin("NICK", TagIRC, (*Client).handleNICKSelf)
	cl.disp.RegisterBuiltin("ERROR", TagIRC, (*Client).handleERROR)
	cl.disp.RegisterBuiltin("001", TagIRC, (*Client).handle001)
	cl.disp.RegisterBuiltin("002", TagIRC, (*Client).handleCapture)
	cl.disp.RegisterBuiltin("003", TagIRC, (*Client).handle003)
	cl.disp.RegisterBuiltin("004", TagIRC, (*Client).handle004)
	cl.disp.RegisterBuiltin("005", TagIRC, (*Client).handle005)
	cl.disp.RegisterBuiltin("383", TagIRC, (*Client).handle383)
	cl.disp.RegisterBuiltin("432", TagIRC, (*Client).handleNickError)
	cl.disp.RegisterBuiltin("433", TagIRC, (*Client).handleNickError)
	cl.disp.RegisterBuiltin("436", TagIRC, (*Client).handleNickError)
	cl.disp.RegisterBuiltin("437", TagIRC, (*Client).handleNickError)
	cl.disp.RegisterBuiltin("464", TagIRC, (*Client).handle464)
	cl.disp.RegisterBuiltin("465", TagIRC, (*Client).handle465)
	cl.disp.RegisterBuiltin("484", TagIRC, (*Client).handle484)
}

// handlePING answers PING transparently, during logon and after. A PING
// with no argument is malformed.
func (cl *Client) handlePING(msg *Message) Outcome {
	if len(msg.Params) == 0 {
		return ProtoErrBit
	}
	if err := cl.writeRaw("PONG :" + msg.Trailing()); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

// handleERROR records the server's ERROR line as the last error. The
// server sends ERROR immediately before closing the connection, so
// there's nothing left to do but surface it.
func (cl *Client) handleERROR(msg *Message) Outcome {
	cl.lastErr = newErr(KindIO, "server sent ERROR: "+msg.Trailing(), nil)
	return IoErrBit | CantProceed
}

// handleNICKSelf keeps Client.myNick in sync with a successful
// self-rename outside of logon.
func (cl *Client) handleNICKSelf(msg *Message) Outcome {
	src := msg.Source()
	if src == nil || len(msg.Params) == 0 {
		return ProtoErrBit
	}
	if Istreq(src.Name, cl.myNick, cl.cm) {
		cl.myNick = msg.Params[0]
	}
	return 0
}

// handleCapture simply records the message into the logon snapshot for
// 002-004 and 383, which carry no other state this library tracks.
func (cl *Client) handleCapture(msg *Message) Outcome {
	cl.recordLogonLine(msg)
	return 0
}

// handle001 implements RPL_WELCOME: capture the server-assigned nick,
// stripping any !user@host the server echoed.
func (cl *Client) handle001(msg *Message) Outcome {
	cl.recordLogonLine(msg)
	if len(msg.Params) > 0 {
		cl.myNick = ParseSource(msg.Params[0]).Name
	}
	if cl.tracker != nil {
		cl.tracker.SetMyNick(cl.myNick)
	}
	if cl.Config.ServiceConnect {
		return 0
	}
	return LogonComplete
}

// handle003 implements RPL_CREATED, parsing the server's free-text
// creation date. The format varies enough across ircds that dateparse's
// heuristic parser is a better fit than a fixed layout string.
func (cl *Client) handle003(msg *Message) Outcome {
	cl.recordLogonLine(msg)
	text := msg.Trailing()
	if idx := strings.Index(text, " "); idx >= 0 {
		if ts, err := dateparse.ParseAny(text[idx+1:]); err == nil {
			cl.created = ts
		}
	}
	return 0
}

// handle004 implements RPL_MYINFO: capture myhost, version, and the
// supported user/channel mode letters.
func (cl *Client) handle004(msg *Message) Outcome {
	cl.recordLogonLine(msg)
	if len(msg.Params) >= 5 {
		cl.myHost = msg.Params[1]
		cl.version = msg.Params[2]
		cl.umodes = msg.Params[3]
		cl.cmodes = msg.Params[4]
	}
	if cl.Config.ServiceConnect {
		return 0
	}
	return LogonComplete
}

// handle005 implements RPL_ISUPPORT: parse CASEMAPPING, PREFIX,
// CHANMODES, CHANTYPES, and every other KEY=VAL pair into the
// attributes map. Seeing the first CASEMAPPING enables the tracker if
// configured.
func (cl *Client) handle005(msg *Message) Outcome {
	if len(msg.Params) < 2 {
		return ProtoErrBit
	}
	for _, tok := range msg.Params[1 : len(msg.Params)-1] {
		key, val, hasVal := strings.Cut(tok, "=")
		if key == "" {
			continue
		}
		if cl.isupport == nil {
			cl.isupport = make(map[string]string)
		}
		if hasVal {
			cl.isupport[key] = val
		} else {
			cl.isupport[key] = ""
		}

		switch key {
		case "CASEMAPPING":
			newCM := ParseCasemap(val)
			first := !cl.sawCasemap
			cl.sawCasemap = true
			cl.cm = newCM
			if first && cl.Config.EnableTracking && cl.tracker == nil {
				cl.enableTracking()
			} else if cl.tracker != nil {
				cl.tracker.SetCasemap(newCM)
			}
		case "PREFIX":
			if p, err := ParsePrefix(val); err == nil {
				cl.prefix = p
				if cl.tracker != nil {
					cl.tracker.SetPrefix(p)
				}
			}
		case "CHANMODES":
			cl.chanModes = ParseChanModes(val)
		case "CHANTYPES":
			cl.chanTypes = val
		}
	}
	return 0
}

// handle383 implements RPL_YOURESERVICE, the services equivalent of
// 004's LogonComplete signal.
func (cl *Client) handle383(msg *Message) Outcome {
	cl.recordLogonLine(msg)
	if len(msg.Params) > 0 {
		cl.myNick = ParseSource(msg.Params[0]).Name
	}
	return LogonComplete
}

// handleNickError implements 432 (erroneous nickname), 433 (nickname
// in use), 436 (nick collision), and 437 (unavailable resource): ask
// the configured mutator for a replacement and resend NICK. An empty or
// unchanged (under casemap) reply means the mutator has run out of
// ideas, so logon fails with OutOfNicks.
func (cl *Client) handleNickError(msg *Message) Outcome {
	rejected := cl.pendingNick
	if rejected == "" && len(msg.Params) > 1 {
		rejected = msg.Params[1]
	}

	mutate := cl.Config.NickMutator
	if mutate == nil {
		mutate = defaultNickMutator
	}
	next := mutate(rejected)
	if next == "" || Istreq(next, rejected, cl.cm) {
		cl.lastErr = newErr(KindOutOfNicks, "nick mutator exhausted after "+rejected, nil)
		return OutOfNicksBit | CantProceed
	}

	cl.pendingNick = next
	if err := cl.writeRaw("NICK " + next); err != nil {
		return IoErrBit | CantProceed
	}
	return 0
}

// defaultNickMutator appends a single underscore, the usual default
// collision-avoidance strategy most clients fall back to.
func defaultNickMutator(old string) string {
	return old + "_"
}

// handle464 implements ERR_PASSWDMISMATCH.
func (cl *Client) handle464(msg *Message) Outcome {
	cl.lastErr = newErr(KindAuth, "server rejected the supplied password", nil)
	return AuthErrBit | CantProceed
}

// handle465 implements ERR_YOUREBANNEDCREEP: records the ban flag and
// message but lets the server decide when to close the connection.
func (cl *Client) handle465(msg *Message) Outcome {
	cl.banned = true
	cl.banMessage = msg.Trailing()
	return 0
}

// handle484 implements ERR_RESTRICTED: sets the restricted flag.
func (cl *Client) handle484(msg *Message) Outcome {
	cl.restricted = true
	return 0
}

func (cl *Client) recordLogonLine(msg *Message) {
	switch msg.Command {
	case "001":
		cl.logonConv[0] = msg
	case "002":
		cl.logonConv[1] = msg
	case "003":
		cl.logonConv[2] = msg
	case "004":
		cl.logonConv[3] = msg
	}
}

// parseISupportInt is a small helper for numeric ISUPPORT values (e.g.
// NICKLEN, CHANNELLEN) that callers may query via ISupportInt.
func parseISupportInt(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
