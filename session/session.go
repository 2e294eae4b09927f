// Package session provides the explicit execution context a model runs in:
// the seeded random source, the device description, variable
// initialization and the console log writer.
package session

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"hwnet/nn"

	"github.com/google/uuid"
)

// DefaultSeed is used when no WithSeed option is given.
const DefaultSeed int64 = 42

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

type Session struct {
	ID     uuid.UUID
	Device Device

	seed    int64
	rng     *rand.Rand
	out     io.Writer
	verbose bool
	closed  bool
}

type Option func(*Session)

// WithSeed fixes the seed of the session's random source.
func WithSeed(seed int64) Option {
	return func(s *Session) { s.seed = seed }
}

// WithOutput redirects console logging. A nil writer discards it.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		if w == nil {
			w = io.Discard
		}
		s.out = w
	}
}

// WithVerbose enables or disables console logging.
func WithVerbose(v bool) Option {
	return func(s *Session) { s.verbose = v }
}

// New opens a session. Defaults: seed 42, output os.Stdout, verbose.
func New(opts ...Option) *Session {
	s := &Session{
		ID:      uuid.New(),
		Device:  DetectDevice(),
		seed:    DefaultSeed,
		out:     os.Stdout,
		verbose: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewSource(s.seed))
	return s
}

func (s *Session) Seed() int64 { return s.seed }

// Rand returns the session's random source. Every draw (initializers,
// dropout masks) comes from it, so a fixed seed reproduces a run.
func (s *Session) Rand() *rand.Rand { return s.rng }

func (s *Session) Verbose() bool { return s.verbose }

// Err reports ErrClosed once the session has been closed.
func (s *Session) Err() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Initialize runs every initializer in reg, resetting weights, biases and
// batch-norm statistics.
func (s *Session) Initialize(reg *nn.Registry) error {
	if err := s.Err(); err != nil {
		return err
	}
	reg.Initialize(s.rng)
	return nil
}

// Logf writes one console line when the session is verbose.
func (s *Session) Logf(format string, args ...any) {
	if !s.verbose || s.closed {
		return
	}
	fmt.Fprintf(s.out, format+"\n", args...)
}

// Close releases the session. Closing twice is harmless.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s seed=%d on %s", s.ID, s.seed, s.Device)
}
