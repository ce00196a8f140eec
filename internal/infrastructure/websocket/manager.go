package websocket

import (
	"context"
	"sync"

	"storecare/pkg/logger"
)

// Manager tracks every open chat screen session.
type Manager struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	ctx        context.Context
	started    chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		ctx:        context.Background(),
		started:    make(chan struct{}),
	}
}

// Start runs the manager's main loop in a goroutine. When ctx is done
// every connection is closed, which tears each session down through its
// normal read-pump exit.
func (m *Manager) Start(ctx context.Context) {
	m.ctx = ctx
	close(m.started)

	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client] = struct{}{}
				m.mutex.Unlock()
				logger.Debug("WebSocket: session %s registered", client.ID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if _, ok := m.clients[client]; ok {
					delete(m.clients, client)
					close(client.Send)
				}
				m.mutex.Unlock()
				logger.Debug("WebSocket: session %s unregistered", client.ID)

			case <-ctx.Done():
				m.mutex.RLock()
				for client := range m.clients {
					client.Conn.Close()
				}
				m.mutex.RUnlock()
				m.drain()
				return
			}
		}
	}()
}

// drain keeps accepting unregistrations after shutdown so sessions can
// finish tearing down.
func (m *Manager) drain() {
	for {
		m.mutex.RLock()
		remaining := len(m.clients)
		m.mutex.RUnlock()
		if remaining == 0 {
			return
		}

		client := <-m.Unregister
		m.mutex.Lock()
		if _, ok := m.clients[client]; ok {
			delete(m.clients, client)
			close(client.Send)
		}
		m.mutex.Unlock()
	}
}

// Context is the manager's lifetime; sessions derive theirs from it.
func (m *Manager) Context() context.Context {
	<-m.started
	return m.ctx
}

func (m *Manager) ActiveSessions() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}
