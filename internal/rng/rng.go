// Package rng provides a cryptographically strong random number
// generator for outcome determination. Card, dice, and symbol draws all
// consume this single source.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Source produces uniform draws. Outcome generators depend on this
// interface only, which keeps them pure and lets tests script exact
// draw sequences.
type Source interface {
	// Intn returns a uniform value in [0, n). n must be positive.
	Intn(n int) int
}

// Service provides cryptographically strong random number generation
// backed by crypto/rand.
type Service struct {
	entropy io.Reader
	mu      sync.Mutex
}

// New creates a new RNG service using crypto/rand.
func New() *Service {
	return &Service{entropy: rand.Reader}
}

// GenerateInt returns a random integer in range [0, max). Uses rejection
// sampling to eliminate modulo bias.
func (s *Service) GenerateInt(max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject values >= threshold to keep the distribution uniform.
	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % uint64(max))

	for {
		buf := make([]byte, 8)
		if _, err := io.ReadFull(s.entropy, buf); err != nil {
			return 0, fmt.Errorf("failed to generate random int: %w", err)
		}

		n := binary.BigEndian.Uint64(buf) >> 1 // 63-bit positive range

		if n < threshold {
			return int64(n % uint64(max)), nil
		}
	}
}

// Intn implements Source. A crypto/rand read failure means the process
// has lost its entropy source and cannot produce fair outcomes, so this
// panics rather than degrade.
func (s *Service) Intn(n int) int {
	v, err := s.GenerateInt(int64(n))
	if err != nil {
		panic(fmt.Sprintf("rng: entropy source failed: %v", err))
	}
	return int(v)
}
