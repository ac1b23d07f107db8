package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// LevelMeter keeps the most recent window of captured PCM and reports its loudness on a 0..100 scale.
type LevelMeter struct {
	mu       sync.Mutex
	buf      *ringbuffer.RingBuffer
	capacity int
	scratch  []byte
}

// NewLevelMeter returns a meter holding windowBytes of audio. The size is rounded down to whole samples.
func NewLevelMeter(windowBytes int) *LevelMeter {
	if windowBytes < 2 {
		windowBytes = 2
	}
	windowBytes -= windowBytes % 2
	return &LevelMeter{
		buf:      ringbuffer.New(windowBytes),
		capacity: windowBytes,
		scratch:  make([]byte, windowBytes),
	}
}

// WindowBytes converts a window duration in milliseconds to a byte count for 16-bit PCM.
func WindowBytes(windowMs, sampleRate, channels int) int {
	return sampleRate * channels * 2 * windowMs / 1000
}

// Write appends PCM, dropping the oldest bytes once the window is full.
func (m *LevelMeter) Write(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(pcm) > m.capacity {
		pcm = pcm[len(pcm)-m.capacity:]
	}
	if overflow := len(pcm) - m.buf.Free(); overflow > 0 {
		if overflow%2 != 0 {
			overflow++
		}
		_, _ = m.buf.Read(m.scratch[:overflow])
	}
	_, _ = m.buf.Write(pcm)
}

// Level returns the RMS loudness of the current window.
func (m *LevelMeter) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.buf.Length()
	if n == 0 {
		return 0
	}
	window := m.scratch[:n]
	if _, err := m.buf.Read(window); err != nil {
		return 0
	}
	_, _ = m.buf.Write(window)

	return calculateLevel(window)
}

// Reset clears the window.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf.Reset()
}

func calculateLevel(pcm []byte) int {
	count := len(pcm) / 2
	if count == 0 {
		return 0
	}

	var sum float64
	clipping := false
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			clipping = true
		}
		v := float64(sample)
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(count))
	if rms == 0 {
		return 0
	}

	// -60 dBFS maps to 0 and -10 dBFS to 100.
	db := 20 * math.Log10(rms/32768.0)
	level := (db + 60) * 2
	if clipping {
		level = math.Max(level, 95)
	}

	return int(math.Max(0, math.Min(100, level)))
}
