package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "dgtt/pkg/domain-errors"
)

func TestStartAndEndWithoutProvider(t *testing.T) {
	tracer := Tracer("dgtt/test")
	ctx, span := Start(context.Background(), tracer, "school.Create", "id-1")
	assert.NotNil(t, ctx)

	assert.NotPanics(t, func() { End(span, nil) })

	_, span = Start(context.Background(), tracer, "school.Create", "id-2")
	assert.NotPanics(t, func() { End(span, dErrors.New(dErrors.CodeNotFound, "school not found")) })

	_, span = Start(context.Background(), tracer, "school.Create", "id-3")
	assert.NotPanics(t, func() { End(span, errors.New("db down")) })
}
