package powermeter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/lazyinit/internal/ctxlog"
)

// SamplesPerSecondLimit is the hardware sampling limit.
const SamplesPerSecondLimit = 10

const sampleSize = 2

var ErrInvalidConfig = errors.New("invalid power meter configuration")

// Config holds the meter parameters.
type Config struct {
	// Dir is the power-supply directory, e.g. /sys/class/power_supply/battery.
	Dir string
	// BufferSize is the sample buffer size in bytes.
	BufferSize int
	// SamplesPerSecond must be in 1..SamplesPerSecondLimit.
	SamplesPerSecond int
}

// DefaultConfig mirrors the driver defaults.
func DefaultConfig() Config {
	return Config{
		Dir:              "/sys/class/power_supply/battery",
		BufferSize:       1 << 20,
		SamplesPerSecond: SamplesPerSecondLimit,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BufferSize < sampleSize:
		return fmt.Errorf("%w: buffer_size is %d", ErrInvalidConfig, c.BufferSize)
	case c.SamplesPerSecond <= 0:
		return fmt.Errorf("%w: samples_per_second is %d", ErrInvalidConfig, c.SamplesPerSecond)
	case c.SamplesPerSecond > SamplesPerSecondLimit:
		return fmt.Errorf("%w: samples_per_second (%d) exceeds the hardware limit (%d)",
			ErrInvalidConfig, c.SamplesPerSecond, SamplesPerSecondLimit)
	}
	return nil
}

// Capacity is the number of samples the buffer holds.
func (c Config) Capacity() int {
	return c.BufferSize / sampleSize
}

// Duration is how long recording lasts before the buffer fills.
func (c Config) Duration() time.Duration {
	return time.Duration(c.Capacity()/c.SamplesPerSecond) * time.Second
}

// Meter records power samples.
type Meter struct {
	cfg      Config
	interval time.Duration

	mu        sync.Mutex
	samples   []uint16
	recording bool
	stop      chan struct{}
	stopped   chan struct{}
}

// NewMeter validates cfg and allocates the sample buffer.
func NewMeter(cfg Config) (*Meter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Meter{
		cfg:      cfg,
		interval: time.Second / time.Duration(cfg.SamplesPerSecond),
		samples:  make([]uint16, 0, cfg.Capacity()),
	}, nil
}

// Power converts a current (µA) and voltage (µV) reading to milliwatts.
func Power(microamps, microvolts int64) uint16 {
	if microamps >= 0 {
		return 0
	}
	ma := -microamps / 1000
	mv := microvolts / 1000
	mw := ma * mv / 1000
	if mw > 0xFFFF {
		return 0xFFFF
	}
	return uint16(mw)
}

// Sample reads one power value from the supply directory. Read failures and
// charging both yield 0.
func (m *Meter) Sample(ctx context.Context) uint16 {
	logger := ctxlog.FromContext(ctx)

	curr, err := readInt(filepath.Join(m.cfg.Dir, "current_now"))
	if err != nil {
		logger.Error("Failed to read current.", "error", err)
		return 0
	}
	if curr >= 0 {
		logger.Warn("Power supply reports charging.", "current_now", curr)
		return 0
	}
	volt, err := readInt(filepath.Join(m.cfg.Dir, "voltage_now"))
	if err != nil {
		logger.Error("Failed to read voltage.", "error", err)
		return 0
	}
	return Power(curr, volt)
}

// Start launches the recorder. It returns an error if already recording.
func (m *Meter) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording {
		return errors.New("power meter is already recording")
	}
	m.recording = true
	m.stop = make(chan struct{})
	m.stopped = make(chan struct{})
	go m.record(ctx, m.stop, m.stopped)

	ctxlog.FromContext(ctx).Info("Power meter recording started.",
		"samples_per_second", m.cfg.SamplesPerSecond,
		"duration", m.cfg.Duration())
	return nil
}

// Stop halts the recorder and waits for it to exit. It is a no-op when the
// meter is not recording.
func (m *Meter) Stop() {
	m.mu.Lock()
	if !m.recording {
		m.mu.Unlock()
		return
	}
	stop, stopped := m.stop, m.stopped
	m.recording = false
	m.mu.Unlock()

	close(stop)
	<-stopped
}

// Recording reports whether the recorder is running.
func (m *Meter) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// Samples returns a copy of the recorded milliwatt values.
func (m *Meter) Samples() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint16, len(m.samples))
	copy(out, m.samples)
	return out
}

// WriteTo writes every sample as watts with three decimals, one per line.
func (m *Meter) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, s := range m.Samples() {
		n, err := fmt.Fprintf(w, "%d.%03d\n", s/1000, s%1000)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// record schedules each sample against the start time so that timer drift
// does not accumulate.
func (m *Meter) record(ctx context.Context, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for idx := 0; ; idx++ {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		value := m.Sample(ctx)

		m.mu.Lock()
		if len(m.samples) == cap(m.samples) {
			m.recording = false
			m.mu.Unlock()
			logger.Warn("Power meter buffer full, stopping recorder.", "samples", idx)
			return
		}
		m.samples = append(m.samples, value)
		m.mu.Unlock()

		wait := time.Until(start.Add(time.Duration(idx+1) * m.interval))
		if wait < 0 {
			logger.Debug("Power meter timer drifted.", "behind", -wait)
			wait = 0
		}
		timer.Reset(wait)
	}
}

func readInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
