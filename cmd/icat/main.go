// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Command icat is a line-oriented netcat-style front end for srsirc: it
// logs onto a server and links stdin/stdout to the connection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	srsirc "github.com/fstd/go-srsirc"
)

func main() {
	var (
		server   = flag.String("server", "", "host[:port]['/ssl'] of the IRC server")
		nick     = flag.String("nick", "icat", "nick to use")
		uname    = flag.String("uname", "icat", "ident/username to use")
		fname    = flag.String("fname", "icat user", "real name to use")
		pass     = flag.String("pass", "", "server password")
		proxy    = flag.String("proxy", "", "TYPE:host-endpoint proxy spec")
		channels = flag.String("channels", "", "comma-separated list of channels to join once connected")
		verbose  = flag.Bool("verbose", false, "log library diagnostics to stderr")
		maxRetry = flag.Int("max-retries", 5, "maximum reconnect attempts before giving up (0 = unlimited)")
	)
	flag.Parse()

	if *server == "" {
		fmt.Fprintln(os.Stderr, "icat: -server is required")
		os.Exit(2)
	}

	ep, err := srsirc.ParseEndpoint(*server)
	if err != nil {
		log.Fatalf("icat: %v", err)
	}

	cfg := srsirc.Config{
		Server: ep.Host,
		Port:   ep.Port,
		UseTLS: ep.TLS,
		Nick:   *nick,
		Uname:  *uname,
		Fname:  *fname,
		Password: *pass,
	}
	if *verbose {
		cfg.Debug = os.Stderr
	}
	if *proxy != "" {
		px, err := srsirc.ParseProxy(*proxy)
		if err != nil {
			log.Fatalf("icat: %v", err)
		}
		cfg.Proxy = &px
	}

	cl := srsirc.New(cfg)

	if err := connectWithBackoff(cl, *maxRetry); err != nil {
		log.Fatalf("icat: %v", err)
	}
	defer cl.Disconnect()

	for _, ch := range splitChannels(*channels) {
		cl.Write("JOIN " + ch)
	}

	go pipeStdinToServer(cl)
	pipeServerToStdout(cl)
}

// connectWithBackoff retries Client.Connect with a bounded exponential
// backoff, giving up after maxRetries attempts (0 = unlimited).
func connectWithBackoff(cl *srsirc.Client, maxRetries int) error {
	delay := time.Second
	var lastErr error
	for attempt := 0; maxRetries == 0 || attempt < maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := cl.Connect(ctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("icat: connect attempt %d failed: %v", attempt+1, err)
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return lastErr
}

func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pipeStdinToServer(cl *srsirc.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := cl.Write(line); err != nil {
			log.Printf("icat: write failed: %v", err)
			return
		}
	}
}

func pipeServerToStdout(cl *srsirc.Client) {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for {
		msg, err := cl.Read(0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "icat: disconnected: %v\n", err)
			return
		}
		fmt.Fprintln(out, msg.String())
		out.Flush()
	}
}
