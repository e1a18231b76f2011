// Package payment verifies school and candidate fee payments. Only a
// simulated provider exists; verification is bounded by a timeout either way.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dgtt/internal/platform/config"
	dErrors "dgtt/pkg/domain-errors"
)

// Gateway is the payment provider port.
type Gateway interface {
	Verify(ctx context.Context, reference string, amount float64) (bool, error)
	GeneratePaymentLink(ctx context.Context, requestID string, amount float64, description string) (string, error)
}

// Simulated accepts every payment when disabled. When enabled it accepts any
// non-empty reference with a positive amount.
type Simulated struct {
	enabled  bool
	linkBase string
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Simulated)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulated) { s.logger = logger }
}

func NewSimulated(cfg config.PaymentConfig, opts ...Option) *Simulated {
	s := &Simulated{
		enabled:  cfg.Enabled,
		linkBase: cfg.PaymentLinkBase,
		timeout:  cfg.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.linkBase == "" {
		s.linkBase = config.Default().Payment.PaymentLinkBase
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) Verify(ctx context.Context, reference string, amount float64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeTimeout, "payment verification timed out")
	}
	if !s.enabled {
		return true, nil
	}
	ok := strings.TrimSpace(reference) != "" && amount > 0
	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment verified",
			"reference", reference,
			"amount", amount,
			"accepted", ok,
		)
	}
	return ok, nil
}

func (s *Simulated) GeneratePaymentLink(ctx context.Context, requestID string, amount float64, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeTimeout, "payment link generation cancelled")
	}
	if requestID == "" {
		return "", dErrors.New(dErrors.CodeValidation, "request number is required")
	}
	if !s.enabled {
		return s.linkBase + requestID, nil
	}
	q := url.Values{}
	q.Set("ref", requestID)
	q.Set("amount", strconv.FormatFloat(amount, 'f', 0, 64))
	q.Set("desc", description)
	return fmt.Sprintf("%s?%s", strings.TrimSuffix(s.linkBase, "/"), q.Encode()), nil
}
