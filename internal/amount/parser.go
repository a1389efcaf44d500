// Package amount turns user-typed decimal text like "12,5 lunch" into exact
// integer cents and an optional trailing note.
package amount

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrSignNotAllowed = errors.New("sign not allowed")
	ErrAmountOverflow = errors.New("amount overflow")
)

// Parse reads "[sign]digits[(.|,)d[d]] [note]" from text. A sign is accepted
// only when allowSigned is true. The note is nil when no text follows the
// number.
func Parse(text string, allowSigned bool) (int64, *string, error) {
	s := scanner{src: text}
	s.skipSpace()
	if s.done() {
		return 0, nil, fmt.Errorf("%w: missing amount", ErrInvalidAmount)
	}

	negative := false
	if c := s.peek(); c == '+' || c == '-' {
		if !allowSigned {
			return 0, nil, ErrSignNotAllowed
		}
		negative = c == '-'
		s.pos++
	}

	whole, n, err := s.digits()
	if err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, fmt.Errorf("%w: expected digits", ErrInvalidAmount)
	}

	var frac int64
	if c := s.peek(); c == '.' || c == ',' {
		s.pos++
		f, n, err := s.digits()
		if err != nil || n > 2 {
			return 0, nil, fmt.Errorf("%w: at most 2 decimal places", ErrInvalidAmount)
		}
		if n == 0 {
			return 0, nil, fmt.Errorf("%w: expected digits after %q", ErrInvalidAmount, c)
		}
		if n == 1 {
			f *= 10
		}
		frac = f
	}

	if !s.done() && !s.atSpace() {
		r, _ := utf8.DecodeRuneInString(s.rest())
		return 0, nil, fmt.Errorf("%w: unexpected %q after number", ErrInvalidAmount, r)
	}

	if whole > (math.MaxInt64-frac)/100 {
		return 0, nil, ErrAmountOverflow
	}
	cents := whole*100 + frac
	if negative {
		cents = -cents
	}

	var note *string
	if rest := strings.TrimSpace(s.rest()); rest != "" {
		note = &rest
	}
	return cents, note, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) rest() string { return s.src[s.pos:] }

func (s *scanner) atSpace() bool {
	r, _ := utf8.DecodeRuneInString(s.rest())
	return unicode.IsSpace(r)
}

func (s *scanner) skipSpace() {
	for !s.done() {
		r, size := utf8.DecodeRuneInString(s.rest())
		if !unicode.IsSpace(r) {
			return
		}
		s.pos += size
	}
}

// digits consumes a run of ASCII digits and returns its value and length.
func (s *scanner) digits() (int64, int, error) {
	var v int64
	n := 0
	for !s.done() {
		c := s.peek()
		if c < '0' || c > '9' {
			break
		}
		d := int64(c - '0')
		if v > (math.MaxInt64-d)/10 {
			return 0, n, ErrAmountOverflow
		}
		v = v*10 + d
		s.pos++
		n++
	}
	return v, n, nil
}
