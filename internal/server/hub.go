// Package server tracks live WebSocket clients so shutdown can wait for their
// goroutines and close stragglers.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// hub is the set of clients whose pumps are still running. Room state lives in
// the chat engine; the hub only owns connection lifetimes.
type hub struct {
	mutex   sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
	log     *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// serve runs client in its own goroutine until the connection ends. Once
// wait has been called the client is disconnected instead and serve returns
// false.
func (h *hub) serve(client *Client) bool {
	h.mutex.Lock()
	if h.closing {
		h.mutex.Unlock()
		client.abort()
		return false
	}
	h.clients[client] = struct{}{}
	h.wg.Add(1)
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, client)
			h.mutex.Unlock()
			h.wg.Done()
		}()
		client.Serve()
	}()
	return true
}

func (h *hub) count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// shutdownClients closes all active client connections.
func (h *hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "addr", client.addr, "err", err)
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// wait blocks until every client goroutine has finished or the timeout
// elapses, in which case remaining connections are closed and
// context.DeadlineExceeded is returned.
func (h *hub) wait(timeout time.Duration) error {
	h.mutex.Lock()
	h.closing = true
	h.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		h.log.Warn("Client shutdown timeout reached, closing remaining connections")
		h.shutdownClients()
		return context.DeadlineExceeded
	}
}
