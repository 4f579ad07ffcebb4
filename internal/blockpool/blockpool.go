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

// Package blockpool provides a pool of reusable, block-sized byte
// buffers so the offload and read paths don't allocate a fresh
// maxBlockSize buffer (often several megabytes) on every block.
package blockpool

import "sync"

// Pool hands out []byte slices of a fixed capacity. The zero value is
// not usable; construct with New.
type Pool struct {
	blockSize int
	pool      sync.Pool
}

// New returns a Pool whose buffers have capacity blockSize.
func New(blockSize int) *Pool {
	p := &Pool{blockSize: blockSize}
	p.pool.New = func() interface{} {
		b := make([]byte, blockSize)
		return &b
	}
	return p
}

// Get returns a buffer of length p's block size. Callers must return
// it with Put when done.
func (p *Pool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

// Put returns a buffer previously obtained with Get. Buffers of the
// wrong capacity are dropped rather than pooled.
func (p *Pool) Put(b []byte) {
	if cap(b) != p.blockSize {
		return
	}
	b = b[:p.blockSize]
	p.pool.Put(&b)
}
