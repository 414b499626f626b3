package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("email", "a@example.com"),
		attribute.Int64("customer.id", 7),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("customer.id"), attrs[0].Key)
}

func TestSafeErrorStripsArgs(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New("insert failed [args: a@example.com]"))
	assert.EqualError(t, err, "insert failed")
}
