package gateway

import (
	"sync"
	"time"
)

// defaultIdleAfter marks a connection idle when no request, auth message
// or pong arrived for this long
const defaultIdleAfter = 5 * time.Minute

// ClientRegistry tracks the gateway's connected agent and operator
// clients and their activity
type ClientRegistry struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	idleAfter time.Duration
}

// NewClientRegistry creates a registry; idleAfter <= 0 uses the default
func NewClientRegistry(idleAfter time.Duration) *ClientRegistry {
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	return &ClientRegistry{
		clients:   make(map[string]*Client),
		idleAfter: idleAfter,
	}
}

// Add registers a newly accepted connection
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
}

// Remove drops a client after its connection closed
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

// GetAll returns every tracked client, authenticated or not
func (r *ClientRegistry) GetAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetAuthenticatedClients returns the clients eligible for event push
func (r *ClientRegistry) GetAuthenticatedClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if client.Authenticated {
			clients = append(clients, client)
		}
	}
	return clients
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// GetConnectedClients returns connection statistics for every client,
// flagging the ones idle past the registry's threshold
func (r *ClientRegistry) GetConnectedClients() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, client := range r.clients {
		infos = append(infos, ClientInfo{
			ID:            client.ID,
			Authenticated: client.Authenticated,
			ConnectedAt:   client.ConnectedAt,
			LastActivity:  client.LastActivity,
			IPAddress:     client.IPAddress,
			Idle:          now.Sub(client.LastActivity) > r.idleAfter,
		})
	}
	return infos
}

// UpdateActivity stamps a client's last activity time
func (r *ClientRegistry) UpdateActivity(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = time.Now()
	}
}
