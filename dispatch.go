// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "strings"

// Outcome is the 16-bit handler-return bitmask. A handler may combine
// CantProceed (or one of its specialisations) with informational bits,
// but should never report two distinct terminal outcomes from the same
// call.
type Outcome uint16

const (
	CantProceed Outcome = 1 << iota
	OutOfNicksBit
	AuthErrBit
	ProtoErrBit
	IoErrBit
	AllocErrBit
	CapErrBit
	MoreCaps
	StarttlsOver
	SaslErrBit
	LogonComplete
	SaslComplete
)

// Fatal reports whether o carries CantProceed or one of its
// specialisations, which causes the connect/read loop driving it to
// fail.
func (o Outcome) Fatal() bool {
	return o&(CantProceed|OutOfNicksBit|AuthErrBit|ProtoErrBit|IoErrBit|AllocErrBit|CapErrBit|SaslErrBit) != 0
}

// HandlerFunc processes one dispatched Message and returns an Outcome.
// It receives the owning Client so it may call Write.
type HandlerFunc func(cl *Client, msg *Message) Outcome

// HandlerTag groups built-in handlers for bulk unregistration.
type HandlerTag string

const (
	TagIRC   HandlerTag = "irc"
	TagV3    HandlerTag = "v3"
	TagTrack HandlerTag = "track"
)

type taggedHandler struct {
	fn  HandlerFunc
	tag HandlerTag
}

// Dispatcher holds three parallel handler tables and runs them in
// "user-pre -> built-in -> user-post" order, single-threaded and
// synchronous.
type Dispatcher struct {
	builtin  map[string][]taggedHandler
	userPre  map[string][]HandlerFunc
	userPost map[string][]HandlerFunc
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		builtin:  make(map[string][]taggedHandler),
		userPre:  make(map[string][]HandlerFunc),
		userPost: make(map[string][]HandlerFunc),
	}
}

// RegisterBuiltin installs a library-owned pre-handler for command,
// tagged for later bulk removal.
func (d *Dispatcher) RegisterBuiltin(command string, tag HandlerTag, fn HandlerFunc) {
	command = strings.ToUpper(command)
	d.builtin[command] = append(d.builtin[command], taggedHandler{fn: fn, tag: tag})
}

// UnregisterTag removes every built-in handler installed under tag,
// used by "dumb mode" to strip all protocol handling.
func (d *Dispatcher) UnregisterTag(tag HandlerTag) {
	for cmd, hs := range d.builtin {
		kept := hs[:0]
		for _, h := range hs {
			if h.tag != tag {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(d.builtin, cmd)
		} else {
			d.builtin[cmd] = kept
		}
	}
}

// RegisterPre installs a caller-owned handler that runs before the
// built-in handlers for command.
func (d *Dispatcher) RegisterPre(command string, fn HandlerFunc) {
	command = strings.ToUpper(command)
	d.userPre[command] = append(d.userPre[command], fn)
}

// RegisterPost installs a caller-owned handler that runs after the
// built-in handlers for command.
func (d *Dispatcher) RegisterPost(command string, fn HandlerFunc) {
	command = strings.ToUpper(command)
	d.userPost[command] = append(d.userPost[command], fn)
}

// Dispatch runs every registered handler for msg.Command in
// "user-pre -> built-in -> user-post" order and returns the
// accumulated Outcome. It stops early only on a Fatal outcome, so that
// a single terminal result is reported rather than papering over it
// with further handler bits.
func (d *Dispatcher) Dispatch(cl *Client, msg *Message) Outcome {
	var out Outcome

	for _, fn := range d.userPre[msg.Command] {
		out |= fn(cl, msg)
		if out.Fatal() {
			return out
		}
	}
	for _, h := range d.builtin[msg.Command] {
		out |= h.fn(cl, msg)
		if out.Fatal() {
			return out
		}
	}
	for _, fn := range d.userPost[msg.Command] {
		out |= fn(cl, msg)
		if out.Fatal() {
			return out
		}
	}

	return out
}
