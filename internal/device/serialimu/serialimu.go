// Package serialimu reads acceleration samples from a microcontroller on a
// serial port. The device prints one sample per line, either as "ax,ay,az"
// or as JSON {"ax":..,"ay":..,"az":..}, in g.
package serialimu

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/janpfeifer/GoSlot/internal/device"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
)

// DefaultBaudRate of the IMU firmware.
const DefaultBaudRate = 115200

// IMU publishes the samples read from a port into a device.Latest, so the
// game only ever sees the most recent one.
type IMU struct {
	port   io.ReadCloser
	latest device.Latest

	// Lines and Errors count parsed and rejected lines.
	Lines, Errors atomic.Int64
}

// Open opens the serial port at path.
func Open(path string, baudRate int) (*IMU, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %q: %w", path, err)
	}
	klog.Infof("serialimu: reading %s at %d baud", path, baudRate)
	return New(port), nil
}

// New reads samples from an already opened port.
func New(port io.ReadCloser) *IMU {
	return &IMU{port: port}
}

// Poll implements device.Motion.
func (m *IMU) Poll() (device.Accel, bool) {
	return m.latest.Poll()
}

// Discard implements device.Discarder.
func (m *IMU) Discard() {
	m.latest.Discard()
}

// Close closes the port, which also ends Monitor.
func (m *IMU) Close() error {
	return m.port.Close()
}

// Monitor reads lines until ctx is cancelled or the port fails. Malformed
// lines are logged and skipped.
func (m *IMU) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Scan blocks: it runs in its own goroutine so cancellation is not held up.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return fmt.Errorf("serialimu: read failed: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return fmt.Errorf("serialimu: read failed: %w", err)
				default:
					return io.EOF
				}
			}
			m.handleLine(line)
		}
	}
}

func (m *IMU) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	a, err := ParseLine(line)
	if err != nil {
		m.Errors.Add(1)
		klog.Warningf("serialimu: %v", err)
		return
	}
	m.Lines.Add(1)
	m.latest.Put(a)
}

type jsonSample struct {
	AX *float64 `json:"ax"`
	AY *float64 `json:"ay"`
	AZ *float64 `json:"az"`
}

// ParseLine parses one sample line.
func ParseLine(line string) (device.Accel, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var s jsonSample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return device.Accel{}, fmt.Errorf("invalid JSON sample %q: %w", line, err)
		}
		if s.AX == nil || s.AY == nil || s.AZ == nil {
			return device.Accel{}, fmt.Errorf("sample %q needs ax, ay and az", line)
		}
		return device.Accel{X: *s.AX, Y: *s.AY, Z: *s.AZ}, nil
	}

	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return device.Accel{}, fmt.Errorf("sample %q: want 3 comma separated values, got %d", line, len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		var err error
		v[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return device.Accel{}, fmt.Errorf("sample %q: axis %d: %w", line, i, err)
		}
	}
	return device.Accel{X: v[0], Y: v[1], Z: v[2]}, nil
}
