// Package identifier mints the human-readable business identifiers printed on
// regulatory documents: request numbers, authorization codes, license numbers,
// evaluation numbers and exam numbers.
//
// Format: PREFIX + 13-digit epoch milliseconds + 8 uppercase hex characters.
// The random suffix comes from a v4 UUID, so concurrent callers need no lock
// and no shared counter.
package identifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix names the kind of identifier being minted.
type Prefix string

const (
	PrefixSchoolRequest Prefix = "AE"
	PrefixAuthorization Prefix = "AUTH"
	PrefixLicense       Prefix = "LIC"
	PrefixEvaluation    Prefix = "EVAL"
	PrefixExam          Prefix = "EXAM"
)

const suffixLen = 8

// Generator mints identifiers. The zero value is not usable; call New.
type Generator struct {
	clock func() time.Time
	rand  func() string
}

type Option func(*Generator)

// WithClock fixes the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithRandomSource replaces the random suffix source, used by tests.
func WithRandomSource(src func() string) Option {
	return func(g *Generator) {
		if src != nil {
			g.rand = src
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		clock: time.Now,
		rand:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns a fresh identifier for prefix. It never fails.
func (g *Generator) Next(prefix Prefix) string {
	suffix := strings.ToUpper(strings.ReplaceAll(g.rand(), "-", ""))
	if len(suffix) > suffixLen {
		suffix = suffix[:suffixLen]
	}
	return fmt.Sprintf("%s%013d%s", prefix, g.clock().UnixMilli(), suffix)
}

func (g *Generator) RequestNumber() string     { return g.Next(PrefixSchoolRequest) }
func (g *Generator) AuthorizationCode() string { return g.Next(PrefixAuthorization) }
func (g *Generator) LicenseNumber() string     { return g.Next(PrefixLicense) }
func (g *Generator) EvaluationNumber() string  { return g.Next(PrefixEvaluation) }
func (g *Generator) ExamNumber() string        { return g.Next(PrefixExam) }

// HasPrefix reports whether value was minted for prefix.
func HasPrefix(value string, prefix Prefix) bool {
	rest, ok := strings.CutPrefix(value, string(prefix))
	return ok && len(rest) == 13+suffixLen
}
