// Package secret holds key material in locked, zeroable memory.
package secret

import (
	"errors"
	"runtime"
	"sync"
)

// ErrDestroyed is returned when reading a destroyed buffer.
var ErrDestroyed = errors.New("secret has been destroyed")

// Bytes wraps sensitive bytes. The backing memory is mlocked when the
// platform allows it and zeroed on Destroy.
type Bytes struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// New copies data into a fresh locked buffer. The caller keeps ownership
// of data and should zero it.
func New(data []byte) *Bytes {
	buf := make([]byte, len(data))
	copy(buf, data)

	b := &Bytes{data: buf}
	b.locked = mlock(buf)

	runtime.SetFinalizer(b, func(s *Bytes) {
		s.Destroy()
	})
	return b
}

// Use calls fn with the secret bytes while holding the buffer. fn must
// not retain the slice.
func (b *Bytes) Use(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return ErrDestroyed
	}
	return fn(b.data)
}

// Len returns the length of the secret, or 0 once destroyed.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Locked reports whether the memory is mlocked.
func (b *Bytes) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroy zeroes and unlocks the memory. Safe to call more than once.
func (b *Bytes) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}
	Zero(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
