// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"context"
	"net"
	"strconv"
	"time"
)

// resolve produces an ordered list of connect candidates for host:port,
// built on net.DefaultResolver.
func resolve(ctx context.Context, host string, port uint16) ([]Candidate, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, newErr(KindResolve, "could not resolve "+host, err)
	}
	if len(ips) == 0 {
		return nil, newErr(KindResolve, "resolution of "+host+" returned no addresses", nil)
	}
	cands := make([]Candidate, 0, len(ips))
	for _, ip := range ips {
		cands = append(cands, Candidate{
			Display:  ip.String(),
			Hostname: host,
			Port:     port,
			IsIPv6:   ip.IP.To4() == nil,
		})
	}
	return cands, nil
}

// connectSock resolves host, then tries each candidate in order under
// a soft per-candidate timeout bounded by an overall hard deadline.
func connectSock(ctx context.Context, host string, port uint16, soft, hard time.Duration, localAddr string) (net.Conn, error) {
	cands, err := resolve(ctx, host, port)
	if err != nil {
		return nil, err
	}

	var hardDeadline time.Time
	if hard > 0 {
		hardDeadline = time.Now().Add(hard)
	}

	// If soft timeouts summed across all candidates wouldn't reach the
	// hard deadline, stretch soft so later candidates get a fair share.
	if soft > 0 && hard > 0 {
		count := time.Duration(len(cands))
		if soft*count < hard {
			soft = hard / count
		}
	}

	var dialer net.Dialer
	if localAddr != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(localAddr)}
	}

	var lastErr error
	for _, c := range cands {
		if !hardDeadline.IsZero() && time.Now().After(hardDeadline) {
			return nil, newErr(KindTimeout, "hard connect deadline exceeded", lastErr)
		}

		perCand := soft
		if !hardDeadline.IsZero() {
			remaining := time.Until(hardDeadline)
			if perCand <= 0 || remaining < perCand {
				perCand = remaining
			}
		}

		dctx := ctx
		var cancel context.CancelFunc
		if perCand > 0 {
			dctx, cancel = context.WithTimeout(ctx, perCand)
		}
		addr := net.JoinHostPort(c.Display, strconv.Itoa(int(c.Port)))
		conn, err := dialer.DialContext(dctx, "tcp", addr)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}

	return nil, newErr(KindConnect, "no candidate address for "+host+" accepted a connection", lastErr)
}
