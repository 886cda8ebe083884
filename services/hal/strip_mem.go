// services/hal/strip_mem.go
package hal

import (
	"sync"

	"ledcontrol-go/x/mathx"
)

// MemStrip keeps pixels in memory and records every shown frame with
// brightness applied. It backs the "sim" driver and tests.
type MemStrip struct {
	mu         sync.Mutex
	pix        []byte
	brightness float64
	shown      [][]byte
	maxKeep    int
	shows      int
	failNext   error
}

func NewMemStrip(pixels int) *MemStrip {
	return &MemStrip{pix: make([]byte, pixels*3), brightness: 1, maxKeep: 1024}
}

func (m *MemStrip) Len() int { return len(m.pix) / 3 }

func (m *MemStrip) SetPixel(i int, r, g, b uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i*3 >= len(m.pix) {
		return
	}
	m.pix[i*3], m.pix[i*3+1], m.pix[i*3+2] = r, g, b
}

func (m *MemStrip) Clear() {
	m.mu.Lock()
	clear(m.pix)
	m.mu.Unlock()
}

func (m *MemStrip) SetBrightness(f float64) {
	m.mu.Lock()
	m.brightness = mathx.Clamp(f, 0, 1)
	m.mu.Unlock()
}

func (m *MemStrip) Show() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	out := make([]byte, len(m.pix))
	for i, v := range m.pix {
		out[i] = mathx.ScaleU8(v, m.brightness)
	}
	m.shows++
	m.shown = append(m.shown, out)
	if len(m.shown) > m.maxKeep {
		m.shown = m.shown[len(m.shown)-m.maxKeep:]
	}
	return nil
}

// FailNextShow makes the next Show return err without latching.
func (m *MemStrip) FailNextShow(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

// Shown returns copies of the most recent shown frames, oldest first.
func (m *MemStrip) Shown() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.shown))
	for i, f := range m.shown {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// ShowCount is the total number of successful Show calls.
func (m *MemStrip) ShowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows
}

func (m *MemStrip) Brightness() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}
