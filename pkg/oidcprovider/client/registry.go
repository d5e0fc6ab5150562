// Copyright 2026 The Go OIDC Provider Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"sync"
)

// Registry resolves a client by id. Implementations may be backed by
// static config, a database, or dynamic registration; the core only
// depends on this interface.
type Registry interface {
	Lookup(ctx context.Context, clientID string) (*Info, bool, error)
}

// MemoryRegistry is a static, in-process Registry, suitable for
// configuration-driven deployments and tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Info
}

// NewMemoryRegistry builds a MemoryRegistry seeded with clients.
func NewMemoryRegistry(clients ...*Info) *MemoryRegistry {
	r := &MemoryRegistry{clients: make(map[string]*Info, len(clients))}
	for _, c := range clients {
		r.clients[c.ClientID] = c
	}
	return r
}

// Lookup implements Registry.
func (r *MemoryRegistry) Lookup(_ context.Context, clientID string) (*Info, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	return c, ok, nil
}

// Put registers or replaces a client.
func (r *MemoryRegistry) Put(c *Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ClientID] = c
}

// Delete removes a client by id.
func (r *MemoryRegistry) Delete(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}
