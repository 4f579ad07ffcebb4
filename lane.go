/*
Copyright 2026 The Ledger Offload Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package offload

import (
	"context"
	"sync"

	"go4.org/syncutil"

	"github.com/ledgerbroker/offload/ledger"
)

// Lane runs work keyed by ledger ID. Calls for the same key never run
// concurrently with each other; calls for different keys may run in
// parallel, bounded by the Lane's own concurrency policy. This is the
// Go rendering of the "ordered, per-ledger executor" that this engine
// treats as an external collaborator.
type Lane interface {
	Run(ctx context.Context, ledgerID ledger.ID, fn func(context.Context) error) error
}

// keyLane is the per-ledger-ID serialization primitive: a mutex held
// for the duration of one fn call on this key.
type keyLane struct {
	mu sync.Mutex
}

// KeyedLane implements Lane with one mutex per ledger ID, dispatched
// onto a worker pool bounded by a syncutil.Gate, capping total
// concurrent operations regardless of how many distinct ledgers are
// in flight.
type KeyedLane struct {
	gate *syncutil.Gate

	mu    sync.Mutex
	lanes map[ledger.ID]*keyLane
}

// NewKeyedLane returns a Lane allowing up to concurrency calls
// in flight across all keys at once, while calls sharing a key always
// run one at a time.
func NewKeyedLane(concurrency int) *KeyedLane {
	if concurrency < 1 {
		concurrency = 1
	}
	return &KeyedLane{
		gate:  syncutil.NewGate(concurrency),
		lanes: make(map[ledger.ID]*keyLane),
	}
}

func (l *KeyedLane) laneFor(id ledger.ID) *keyLane {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.lanes[id]
	if !ok {
		kl = &keyLane{}
		l.lanes[id] = kl
	}
	return kl
}

// Run acquires the gate (bounding total concurrency) and the
// per-ledger lane (bounding same-key concurrency to one), then
// invokes fn. It respects ctx cancellation while waiting for the
// gate, but once fn starts, ctx is passed through for fn to observe.
func (l *KeyedLane) Run(ctx context.Context, ledgerID ledger.ID, fn func(context.Context) error) error {
	kl := l.laneFor(ledgerID)

	done := make(chan struct{})
	var waitErr error
	go func() {
		l.gate.Start()
		defer l.gate.Done()
		kl.mu.Lock()
		defer kl.mu.Unlock()
		waitErr = fn(ctx)
		close(done)
	}()

	select {
	case <-done:
		return waitErr
	case <-ctx.Done():
		// The goroutine above still runs to completion (and still
		// releases the gate and lane) since Go has no preemption
		// point to cancel mid-flight driver calls from here; fn must
		// observe ctx itself to stop early. We still propagate the
		// cancellation as the result for this call.
		return ctx.Err()
	}
}
