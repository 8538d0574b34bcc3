// Package shortcode generates and validates short codes for links.
//
// Random codes are drawn from a base62 alphabet as a lazy, finite candidate
// sequence: a bounded number of draws per length, escalating the length by
// one when a length is exhausted. The caller consumes candidates until a
// store insert succeeds; the database unique constraint, not this package,
// is the final arbiter of uniqueness.
package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// Generation and validation errors.
var (
	ErrInvalidSlug         = errors.New("invalid slug format")
	ErrSlugTaken           = errors.New("slug already taken")
	ErrGenerationExhausted = errors.New("short code candidates exhausted")
)

// Base62Alphabet is the character set for random codes.
const Base62Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Custom slug rules: alphanumeric plus hyphen and underscore, 3-20 chars.
var slugRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// ValidateSlug checks a user-chosen slug against charset and length rules.
func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// Generator produces random short code candidates.
type Generator struct {
	minLength      int
	maxLength      int
	drawsPerLength int
}

// NewGenerator creates a Generator with the given length policy.
// Draws per length bounds the retry budget before the length escalates.
func NewGenerator(minLength, maxLength, drawsPerLength int) (*Generator, error) {
	if minLength < 1 || maxLength < minLength {
		return nil, fmt.Errorf("invalid length bounds: min=%d max=%d", minLength, maxLength)
	}
	if drawsPerLength < 1 {
		return nil, fmt.Errorf("draws per length must be positive, got %d", drawsPerLength)
	}
	return &Generator{
		minLength:      minLength,
		maxLength:      maxLength,
		drawsPerLength: drawsPerLength,
	}, nil
}

// Candidates returns a fresh lazy sequence of random code candidates.
// The sequence is finite; Next returns ErrGenerationExhausted once every
// length up to the maximum has used its draw budget. Hitting exhaustion
// in practice signals code-pool pressure, not a routine failure.
func (g *Generator) Candidates() *CandidateSeq {
	return &CandidateSeq{
		gen:    g,
		length: g.minLength,
	}
}

// CandidateSeq is a lazy, finite, restartable sequence of code candidates.
// It is not safe for concurrent use; each caller takes its own sequence.
type CandidateSeq struct {
	gen    *Generator
	length int
	drawn  int
}

// Next draws the next candidate code.
func (s *CandidateSeq) Next() (string, error) {
	for s.length <= s.gen.maxLength {
		if s.drawn < s.gen.drawsPerLength {
			s.drawn++
			return randomCode(s.length)
		}
		// Draw budget spent at this length; escalate.
		s.length++
		s.drawn = 0
	}
	return "", ErrGenerationExhausted
}

// Reset rewinds the sequence to its initial state.
func (s *CandidateSeq) Reset() {
	s.length = s.gen.minLength
	s.drawn = 0
}

// randomCode draws a base62 code of the given length using crypto/rand.
func randomCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		idx, err := cryptoRandInt(len(Base62Alphabet))
		if err != nil {
			return "", fmt.Errorf("draw random index: %w", err)
		}
		b[i] = Base62Alphabet[idx]
	}
	return string(b), nil
}

// cryptoRandInt returns a cryptographically secure random integer in [0, max).
func cryptoRandInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
