package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
)

// clusterAdapter relays envelopes between processes on the same host over
// a unix domain socket. The first process to bind the socket acts as the
// hub and forwards every envelope to all other members; later processes
// dial it. Line-delimited JSON keeps the framing trivial.
type clusterAdapter struct {
	origin  string
	handler Handler

	mu       sync.Mutex
	listener net.Listener
	peers    map[net.Conn]*json.Encoder
	dialed   net.Conn
	closed   bool
}

func newClusterAdapter(path, origin string, handler Handler) (*clusterAdapter, error) {
	a := &clusterAdapter{origin: origin, handler: handler, peers: make(map[net.Conn]*json.Encoder)}

	ln, err := net.Listen("unix", path)
	if err == nil {
		a.listener = ln
		go a.acceptLoop(ln)
		slog.Info("Cluster relay hosting socket", "path", path)
		return a, nil
	}

	conn, dialErr := net.Dial("unix", path)
	if dialErr == nil {
		a.dialed = conn
		go a.readLoop(conn, false)
		slog.Info("Cluster relay joined socket", "path", path)
		return a, nil
	}

	// A leftover socket file from a dead process refuses connections.
	// Remove it and bind once more before giving up. Only a genuine
	// connection refusal marks the socket as stale; any other dial error
	// (e.g. permission denied) leaves the file alone.
	if errors.Is(dialErr, os.ErrNotExist) || isConnRefused(dialErr) {
		_ = os.Remove(path)
		if ln, err = net.Listen("unix", path); err == nil {
			a.listener = ln
			go a.acceptLoop(ln)
			slog.Info("Cluster relay reclaimed stale socket", "path", path)
			return a, nil
		}
	}

	return nil, fmt.Errorf("cluster socket %s: listen: %v, dial: %w", path, err, dialErr)
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func (a *clusterAdapter) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if !closed {
				slog.Warn("Cluster relay accept failed", "error", err)
			}
			return
		}

		a.mu.Lock()
		a.peers[conn] = json.NewEncoder(conn)
		a.mu.Unlock()

		go a.readLoop(conn, true)
	}
}

// readLoop decodes envelopes from one connection. The hub re-fans each
// envelope to its other members so every process on the host sees it.
func (a *clusterAdapter) readLoop(conn net.Conn, hosting bool) {
	defer func() {
		a.mu.Lock()
		delete(a.peers, conn)
		a.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			slog.Warn("Dropping malformed cluster envelope", "error", err)
			continue
		}
		if hosting {
			a.fanOut(env, conn)
		}
		if env.Origin != a.origin {
			a.handler(env)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Cluster relay read error", "error", err)
	}
}

func (a *clusterAdapter) fanOut(env Envelope, from net.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for conn, enc := range a.peers {
		if conn == from {
			continue
		}
		if err := enc.Encode(env); err != nil {
			slog.Warn("Cluster relay peer write failed", "error", err)
		}
	}
}

func (a *clusterAdapter) Publish(_ context.Context, env Envelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dialed != nil {
		if err := json.NewEncoder(a.dialed).Encode(env); err != nil {
			return fmt.Errorf("write to cluster hub: %w", err)
		}
		return nil
	}

	for _, enc := range a.peers {
		if err := enc.Encode(env); err != nil {
			slog.Warn("Cluster relay peer write failed", "error", err)
		}
	}
	return nil
}

func (a *clusterAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true

	if a.dialed != nil {
		return a.dialed.Close()
	}
	for conn := range a.peers {
		_ = conn.Close()
	}
	if a.listener != nil {
		return a.listener.Close()
	}
	return nil
}
