// Package dblock lets only one test binary at a time touch the shared
// integration database. go test runs package binaries in parallel, so each
// binary with database tests calls Acquire from TestMain.
//
// The lock is a loopback TCP listener: the kernel frees it when the process
// dies, so a crashed test run never leaves a stale lock behind.
package dblock

import (
	"fmt"
	"net"
	"os"
	"time"
)

const (
	defaultAddr  = "127.0.0.1:45432"
	pollInterval = 50 * time.Millisecond
	warnAfter    = 30 * time.Second
)

// Acquire blocks until the lock is held and returns its release func. It is
// a no-op when DATABASE_URL is unset, since every database test skips then,
// or when LIQUIDITY_TEST_DB_LOCK is "off".
func Acquire() func() {
	addr := os.Getenv("LIQUIDITY_TEST_DB_LOCK")
	if addr == "off" || os.Getenv("DATABASE_URL") == "" {
		return func() {}
	}
	if addr == "" {
		addr = defaultAddr
	}

	start := time.Now()
	warned := false
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		if !warned && time.Since(start) > warnAfter {
			fmt.Fprintf(os.Stderr, "dblock: still waiting for %s after %s\n", addr, warnAfter)
			warned = true
		}
		time.Sleep(pollInterval)
	}
}
