package bus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/SwerveGo/internal/debug"
	"go.bug.st/serial"
)

// DefaultTimeout bounds the wait for one reply.
const DefaultTimeout = 50 * time.Millisecond

var (
	// ErrTimeout is returned when no reply arrived before the bus timeout.
	ErrTimeout = errors.New("bus: reply timeout")
	// ErrMalformed is returned for a reply that does not follow the protocol.
	ErrMalformed = errors.New("bus: malformed reply")
)

// RemoteError is an ERR reply from a device.
type RemoteError struct {
	ID      int
	Verb    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bus: device %d rejected %s: %s", e.ID, e.Verb, e.Message)
}

// Bus talks to the motor-controller bridge over a serial line. Every device
// on the robot shares it, so requests are serialized: one request line out,
// one reply line back.
//
// Request: "<id>:<seq> <VERB> [args...]\n"
// Reply:   "<id>:<seq> OK [value]\n" or "<id>:<seq> ERR <message>\n"
//
// seq is a per-bus counter echoed by the bridge. A reply whose tag is not
// the one just sent belongs to a timed-out request and is discarded, even
// when it comes from the same device.
type Bus struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	closer  io.Closer
	timeout time.Duration
	seq     uint16
	pending []byte
	now     func() time.Time
}

// inputResetter is implemented by serial ports.
type inputResetter interface {
	ResetInputBuffer() error
}

// Open opens a serial port and wraps it in a Bus.
func Open(port string, baud int, timeout time.Duration) (*Bus, error) {
	debug.Info("Opening bus on %s (%d baud)", port, baud)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	// Short reads keep the reply deadline responsive.
	if err := p.SetReadTimeout(timeout / 4); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	b := New(p, timeout)
	b.closer = p
	return b, nil
}

// New wraps any transport. A Read returning (0, nil) is treated as a
// read timeout, as serial ports do.
func New(rw io.ReadWriter, timeout time.Duration) *Bus {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bus{rw: rw, timeout: timeout, now: time.Now}
}

// Close releases the serial port.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Request sends one command to device id and returns the reply value
// (0 when the reply carries none).
func (b *Bus) Request(id int, verb string, args ...float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	tag := strconv.Itoa(id) + ":" + strconv.Itoa(int(b.seq))

	var sb strings.Builder
	sb.WriteString(tag)
	sb.WriteByte(' ')
	sb.WriteString(verb)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(a, 'g', -1, 64))
	}
	frame := sb.String()
	debug.Bus("tx", id, frame)

	if _, err := b.rw.Write([]byte(frame + "\n")); err != nil {
		return 0, fmt.Errorf("bus: write %q: %w", frame, err)
	}

	deadline := b.now().Add(b.timeout)
	for {
		line, err := b.readLine(deadline)
		if errors.Is(err, ErrTimeout) {
			b.flush()
		}
		if err != nil {
			return 0, fmt.Errorf("bus: device %d %s: %w", id, verb, err)
		}
		debug.Bus("rx", id, line)

		replyTag, rest, ok := strings.Cut(line, " ")
		if !ok || !validTag(replyTag) {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		if replyTag != tag {
			debug.Trace("bus: discarding stale reply %q (want %s)", line, tag)
			continue
		}
		return parseReply(id, verb, rest)
	}
}

// flush drops partial input so a late reply cannot be read as the answer
// to the next request.
func (b *Bus) flush() {
	b.pending = b.pending[:0]
	if r, ok := b.rw.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			debug.Error(fmt.Errorf("bus: reset input buffer: %w", err))
		}
	}
}

// validTag reports whether s has the form "<id>:<seq>".
func validTag(s string) bool {
	id, seq, ok := strings.Cut(s, ":")
	if !ok {
		return false
	}
	if _, err := strconv.Atoi(id); err != nil {
		return false
	}
	_, err := strconv.ParseUint(seq, 10, 16)
	return err == nil
}

func parseReply(id int, verb, rest string) (float64, error) {
	status, value, _ := strings.Cut(rest, " ")
	switch status {
	case "OK":
		if value == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: value %q", ErrMalformed, value)
		}
		return v, nil
	case "ERR":
		return 0, &RemoteError{ID: id, Verb: verb, Message: value}
	default:
		return 0, fmt.Errorf("%w: status %q", ErrMalformed, status)
	}
}

// readLine returns the next line without its terminator.
func (b *Bus) readLine(deadline time.Time) (string, error) {
	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(b.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(b.pending[:i]), "\r")
			b.pending = b.pending[i+1:]
			return line, nil
		}
		if !b.now().Before(deadline) {
			return "", ErrTimeout
		}
		n, err := b.rw.Read(buf)
		b.pending = append(b.pending, buf[:n]...)
		if err != nil {
			return "", err
		}
	}
}
