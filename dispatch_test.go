// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "testing"

func TestDispatchOrdering(t *testing.T) {
	var order []string
	d := NewDispatcher()
	d.RegisterPre("PRIVMSG", func(cl *Client, msg *Message) Outcome {
		order = append(order, "pre")
		return 0
	})
	d.RegisterBuiltin("PRIVMSG", TagIRC, func(cl *Client, msg *Message) Outcome {
		order = append(order, "builtin")
		return 0
	})
	d.RegisterPost("PRIVMSG", func(cl *Client, msg *Message) Outcome {
		order = append(order, "post")
		return 0
	})

	d.Dispatch(nil, &Message{Command: "PRIVMSG"})

	want := []string{"pre", "builtin", "post"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDispatchStopsEarlyOnFatal(t *testing.T) {
	var ran []string
	d := NewDispatcher()
	d.RegisterPre("PRIVMSG", func(cl *Client, msg *Message) Outcome {
		ran = append(ran, "pre")
		return IoErrBit | CantProceed
	})
	d.RegisterBuiltin("PRIVMSG", TagIRC, func(cl *Client, msg *Message) Outcome {
		ran = append(ran, "builtin")
		return 0
	})

	out := d.Dispatch(nil, &Message{Command: "PRIVMSG"})
	if !out.Fatal() {
		t.Fatal("expected a fatal outcome")
	}
	if len(ran) != 1 || ran[0] != "pre" {
		t.Fatalf("builtin handler ran after a fatal pre-handler: %v", ran)
	}
}

func TestDispatchUnregisterTag(t *testing.T) {
	d := NewDispatcher()
	ircRan, v3Ran := false, false
	d.RegisterBuiltin("CAP", TagV3, func(cl *Client, msg *Message) Outcome { v3Ran = true; return 0 })
	d.RegisterBuiltin("PING", TagIRC, func(cl *Client, msg *Message) Outcome { ircRan = true; return 0 })

	d.UnregisterTag(TagV3)
	d.Dispatch(nil, &Message{Command: "CAP"})
	d.Dispatch(nil, &Message{Command: "PING"})

	if v3Ran {
		t.Fatal("v3-tagged handler ran after UnregisterTag(TagV3)")
	}
	if !ircRan {
		t.Fatal("irc-tagged handler should still run")
	}
}

func TestDispatchUnknownCommandIsNoop(t *testing.T) {
	d := NewDispatcher()
	out := d.Dispatch(nil, &Message{Command: "XYZZY"})
	if out != 0 {
		t.Fatalf("out = %v, want 0", out)
	}
}

func TestOutcomeFatal(t *testing.T) {
	if !(CantProceed).Fatal() {
		t.Fatal("CantProceed should be fatal")
	}
	if !(OutOfNicksBit | LogonComplete).Fatal() {
		t.Fatal("OutOfNicksBit combined with an informational bit should still be fatal")
	}
	if (MoreCaps | LogonComplete).Fatal() {
		t.Fatal("purely informational bits should not be fatal")
	}
}
