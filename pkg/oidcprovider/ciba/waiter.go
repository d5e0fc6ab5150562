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

package ciba

import (
	"sync"

	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// waiterHub is the per-process multi-producer/multi-consumer waiter set
// spec.md §5 describes: producers are status transitions (complete),
// consumers are long-polling Wait callers. Registration always happens
// before the caller re-reads current status, so a transition that lands
// between the read and the registration is never missed.
//
// A deployment that spans multiple processes must replace this with a
// pub/sub backplane keyed by auth_req_id (e.g. Redis Publish/Subscribe);
// the Wait/signal contract is unchanged, only the transport between
// producer and consumer differs.
type waiterHub struct {
	mu      sync.Mutex
	waiters map[string][]chan storage.CIBAStatus
}

func newWaiterHub() *waiterHub {
	return &waiterHub{waiters: make(map[string][]chan storage.CIBAStatus)}
}

// register returns a one-shot channel that will receive exactly one
// status value for authReqID.
func (w *waiterHub) register(authReqID string) chan storage.CIBAStatus {
	ch := make(chan storage.CIBAStatus, 1)
	w.mu.Lock()
	w.waiters[authReqID] = append(w.waiters[authReqID], ch)
	w.mu.Unlock()
	return ch
}

// deregister removes ch from authReqID's waiter set, for cancellation
// (client disconnect or Wait's own timeout) so an abandoned waiter does
// not accumulate.
func (w *waiterHub) deregister(authReqID string, ch chan storage.CIBAStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.waiters[authReqID]
	for i, c := range list {
		if c == ch {
			w.waiters[authReqID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(w.waiters[authReqID]) == 0 {
		delete(w.waiters, authReqID)
	}
}

// signal delivers status to every waiter currently registered for
// authReqID and clears the set; each channel is buffered so the send
// never blocks on a consumer that is mid-cancellation.
func (w *waiterHub) signal(authReqID string, status storage.CIBAStatus) {
	w.mu.Lock()
	list := w.waiters[authReqID]
	delete(w.waiters, authReqID)
	w.mu.Unlock()

	for _, ch := range list {
		ch <- status
	}
}
