// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"strings"

	cmap "github.com/orcaman/concurrent-map"
)

// User is a tracked IRC user: nick, optional ident/host/realname, and a
// reference count of channels joined.
type User struct {
	Nick     string
	Uname    string
	Host     string
	Realname string
	Tag      any

	nchans int
}

// Member is a Channel's membership record: a strong reference to the
// global User plus a mode-prefix string kept sorted in descending
// power order.
type Member struct {
	User   *User
	Prefix string
}

// Channel is a tracked channel. Desync is set when the tracker's view
// of the channel may be stale relative to the server -- for example
// right after this client is kicked or parts it, or on a NAMES reply
// received before the previous one finished -- and cleared once the
// tracker has resynchronized (end-of-NAMES).
type Channel struct {
	Name        string
	Topic       string
	TopicSetter string
	Tag         any
	Desync      bool
	Modes       []string

	members    *Skmap[*Member]
	endofnames bool
}

// UserList returns the channel's current members in internal iteration
// order.
func (c *Channel) UserList() []*Member {
	out := make([]*Member, 0, c.members.Len())
	c.members.Each(func(_ string, m *Member) { out = append(out, m) })
	return out
}

// Lookup returns the member for nick, if present.
func (c *Channel) Lookup(nick string) (*Member, bool) {
	return c.members.Get(nick)
}

// Tracker is the reactive channel/user model, registered onto a
// Dispatcher once tracking is enabled and the first 005 CASEMAPPING has
// been seen. It uses a concurrent map for the top-level channel and
// global user registries, and a casemap-aware Skmap for per-channel
// member maps, since the concurrent map has no notion of IRC case
// folding.
type Tracker struct {
	cm       Casemap
	prefix   Prefix
	chanMode ChanModes

	channels cmap.ConcurrentMap
	users    cmap.ConcurrentMap

	myNick string
}

// NewTracker constructs an empty Tracker folding keys under cm.
func NewTracker(cm Casemap) *Tracker {
	return &Tracker{
		cm:       cm,
		prefix:   DefaultPrefix,
		channels: cmap.New(),
		users:    cmap.New(),
	}
}

// SetCasemap updates the folding convention, applied the moment 005
// CASEMAPPING is parsed.
func (t *Tracker) SetCasemap(cm Casemap) { t.cm = cm }

// SetPrefix updates the PREFIX ordering used for member mode-prefix
// sorting, applied the moment 005 PREFIX is parsed.
func (t *Tracker) SetPrefix(p Prefix) { t.prefix = p }

// SetMyNick tells the tracker which nick is "self", used to decide
// whether a JOIN/PART/KICK is about the owning client.
func (t *Tracker) SetMyNick(nick string) { t.myNick = nick }

func (t *Tracker) fold(s string) string { return Strtolower(s, t.cm) }

func (t *Tracker) isMe(nick string) bool { return Istreq(nick, t.myNick, t.cm) }

// Channel returns the tracked channel named name, if any.
func (t *Tracker) Channel(name string) (*Channel, bool) {
	v, ok := t.channels.Get(t.fold(name))
	if !ok {
		return nil, false
	}
	return v.(*Channel), true
}

// User returns the tracked user with the given nick, if any.
func (t *Tracker) User(nick string) (*User, bool) {
	v, ok := t.users.Get(t.fold(nick))
	if !ok {
		return nil, false
	}
	return v.(*User), true
}

// ChannelCount and UserCount report the size of the two top-level
// registries. The sum of member counts across all channels is always
// at least UserCount, since every tracked user belongs to at least one
// channel.
func (t *Tracker) ChannelCount() int { return t.channels.Count() }
func (t *Tracker) UserCount() int    { return t.users.Count() }

func (t *Tracker) getOrCreateChannel(name string) *Channel {
	key := t.fold(name)
	if v, ok := t.channels.Get(key); ok {
		return v.(*Channel)
	}
	c := &Channel{Name: name, members: NewSkmap[*Member](256, t.cm)}
	t.channels.Set(key, c)
	return c
}

func (t *Tracker) getOrCreateUser(nick string) *User {
	key := t.fold(nick)
	if v, ok := t.users.Get(key); ok {
		return v.(*User)
	}
	u := &User{Nick: nick}
	t.users.Set(key, u)
	return u
}

// addMember attaches nick to chan's member map with the given prefix,
// creating the global User if needed and bumping its refcount.
func (t *Tracker) addMember(c *Channel, nick, prefix string) {
	if _, already := c.members.Get(nick); already {
		return
	}
	u := t.getOrCreateUser(nick)
	u.nchans++
	c.members.Put(nick, &Member{User: u, Prefix: prefix})
}

// dropMember removes nick from chan's member map, decrementing and
// possibly purging the underlying User once its last channel reference
// is released.
func (t *Tracker) dropMember(c *Channel, nick string) {
	m, ok := c.members.Del(nick)
	if !ok {
		return
	}
	m.User.nchans--
	if m.User.nchans <= 0 {
		t.users.Remove(t.fold(m.User.Nick))
	}
}

func (t *Tracker) dropChannel(name string) {
	key := t.fold(name)
	v, ok := t.channels.Get(key)
	if !ok {
		return
	}
	c := v.(*Channel)
	c.members.Each(func(nick string, m *Member) {
		m.User.nchans--
		if m.User.nchans <= 0 {
			t.users.Remove(t.fold(m.User.Nick))
		}
	})
	t.channels.Remove(key)
}

// Clear drops every tracked channel and user, used when the owning
// connection is torn down -- there is no more stream to keep the model
// in sync with.
func (t *Tracker) Clear() {
	for _, name := range t.channels.Keys() {
		t.dropChannel(name)
	}
}

// RegisterHandlers installs the tracker's Dispatcher handlers. All are
// tagged TagTrack so UnregisterTag(TagTrack) cleanly disables tracking.
func (t *Tracker) RegisterHandlers(d *Dispatcher) {
	d.RegisterBuiltin("JOIN", TagTrack, t.handleJOIN)
	d.RegisterBuiltin("PART", TagTrack, t.handlePART)
	d.RegisterBuiltin("QUIT", TagTrack, t.handleQUIT)
	d.RegisterBuiltin("NICK", TagTrack, t.handleNICK)
	d.RegisterBuiltin("KICK", TagTrack, t.handleKICK)
	d.RegisterBuiltin("332", TagTrack, t.handle332)
	d.RegisterBuiltin("333", TagTrack, t.handle333)
	d.RegisterBuiltin("353", TagTrack, t.handle353)
	d.RegisterBuiltin("366", TagTrack, t.handle366)
}

// handleJOIN handles JOIN: a self-join creates the channel; otherwise
// ensure the user exists and add a bare member.
func (t *Tracker) handleJOIN(cl *Client, msg *Message) Outcome {
	src := msg.Source()
	if src == nil || len(msg.Params) == 0 {
		return ProtoErrBit
	}
	chanName := msg.Params[0]

	if t.isMe(src.Name) {
		t.getOrCreateChannel(chanName)
		return 0
	}

	c, ok := t.Channel(chanName)
	if !ok {
		// A JOIN for a channel we don't have open yet; note it and
		// carry on rather than failing the whole dispatch.
		c = t.getOrCreateChannel(chanName)
		c.Desync = true
	}
	t.addMember(c, src.Name, "")
	return 0
}

// handle353 accumulates one NAMES reply line.
func (t *Tracker) handle353(cl *Client, msg *Message) Outcome {
	if len(msg.Params) < 3 {
		return ProtoErrBit
	}
	chanName := msg.Params[1]
	c := t.getOrCreateChannel(chanName)
	if c.endofnames {
		c.members.Clear()
		c.endofnames = false
	}
	for _, nick := range strings.Fields(msg.Trailing()) {
		bare, symbol := t.prefix.StripPrefix(nick)
		prefix := ""
		if symbol != 0 {
			prefix = string(symbol)
		}
		if m, ok := c.members.Get(bare); ok {
			m.Prefix = prefix
			continue
		}
		t.addMember(c, bare, prefix)
	}
	return 0
}

// handle366 marks end-of-names and clears desync.
func (t *Tracker) handle366(cl *Client, msg *Message) Outcome {
	if len(msg.Params) < 2 {
		return ProtoErrBit
	}
	c := t.getOrCreateChannel(msg.Params[1])
	c.endofnames = true
	c.Desync = false
	return 0
}

// handle332 records the channel topic.
func (t *Tracker) handle332(cl *Client, msg *Message) Outcome {
	if len(msg.Params) < 2 {
		return ProtoErrBit
	}
	c := t.getOrCreateChannel(msg.Params[1])
	c.Topic = msg.Trailing()
	return 0
}

// handle333 records who set the topic and when.
func (t *Tracker) handle333(cl *Client, msg *Message) Outcome {
	if len(msg.Params) < 3 {
		return ProtoErrBit
	}
	c := t.getOrCreateChannel(msg.Params[1])
	c.TopicSetter = msg.Params[2]
	return 0
}

// handlePART handles PART. A self-part leaves the channel record in
// place (its topic and other members are still valid) but marks it
// desynced, since this client is no longer receiving updates for it;
// the member entry is dropped either way.
func (t *Tracker) handlePART(cl *Client, msg *Message) Outcome {
	src := msg.Source()
	if src == nil || len(msg.Params) == 0 {
		return ProtoErrBit
	}
	c, ok := t.Channel(msg.Params[0])
	if !ok {
		return 0
	}
	if t.isMe(src.Name) {
		c.Desync = true
	}
	t.dropMember(c, src.Name)
	return 0
}

// handleKICK handles KICK. Being kicked behaves like a self-part: the
// channel record survives, marked desynced, with just the kicked
// member removed.
func (t *Tracker) handleKICK(cl *Client, msg *Message) Outcome {
	if len(msg.Params) < 2 {
		return ProtoErrBit
	}
	c, ok := t.Channel(msg.Params[0])
	if !ok {
		return 0
	}
	target := msg.Params[1]
	if t.isMe(target) {
		c.Desync = true
	}
	t.dropMember(c, target)
	return 0
}

// handleQUIT drops the user from every channel it is a member of; the
// last drop purges the global User.
func (t *Tracker) handleQUIT(cl *Client, msg *Message) Outcome {
	src := msg.Source()
	if src == nil {
		return ProtoErrBit
	}
	for item := range t.channels.IterBuffered() {
		t.dropMember(item.Val.(*Channel), src.Name)
	}
	return 0
}

// handleNICK handles NICK: for every channel membership the renamed
// user holds, move the entry to the new key, preserving the prefix. If
// the new key can't be inserted, the affected channel is marked
// desynced rather than left half-updated.
func (t *Tracker) handleNICK(cl *Client, msg *Message) Outcome {
	src := msg.Source()
	if src == nil || len(msg.Params) == 0 {
		return ProtoErrBit
	}
	newNick := msg.Params[0]

	if t.isMe(src.Name) {
		t.myNick = newNick
	}

	oldKey := t.fold(src.Name)
	if v, ok := t.users.Get(oldKey); ok {
		u := v.(*User)
		u.Nick = newNick
		t.users.Remove(oldKey)
		t.users.Set(t.fold(newNick), u)
	}

	for item := range t.channels.IterBuffered() {
		c := item.Val.(*Channel)
		m, ok := c.members.Get(src.Name)
		if !ok {
			continue
		}
		c.members.Del(src.Name)
		if !c.members.Put(newNick, m) {
			c.Desync = true
		}
	}
	return 0
}
