// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Package srsirc is a client-side library for the Internet Relay Chat
// protocol (RFC 1459/2812, the 005/ISUPPORT extension, and a selection of
// IRCv3 capabilities). It establishes a transport to an IRC server
// (optionally through an HTTP CONNECT, SOCKS4, or SOCKS5 proxy, optionally
// tunnelled through TLS from the start or upgraded mid-stream via
// STARTTLS), performs the logon conversation, and then serves as a
// bidirectional, framed, tokenised message channel.
//
// The package is organized around the connection state machine (Conn),
// the line framer/tokeniser (Frame/Tokens), a case-insensitive string map
// parametrised by IRC casemap rules (Skmap), the registered message
// dispatcher (Dispatcher), the logon/IRCv3 negotiation built on top of it,
// a reactive channel/user Tracker, and the public Client surface that
// glues all of it together.
//
// See cmd/icat for a small, line-oriented netcat-style front end built on
// top of Client.
package srsirc
