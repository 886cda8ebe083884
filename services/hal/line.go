// services/hal/line.go
package hal

import "sync"

// FakeLine is an in-memory input line for host builds and tests.
type FakeLine struct {
	mu     sync.RWMutex
	level  bool
	err    error
	closed bool
}

func (l *FakeLine) Set(level bool) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetErr makes subsequent Get calls fail with err (nil clears it).
func (l *FakeLine) SetErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *FakeLine) Get() (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return false, l.err
	}
	return l.level, nil
}

func (l *FakeLine) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *FakeLine) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
