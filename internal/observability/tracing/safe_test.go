package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("email", "bob@example.com"),
		attribute.String("http.route", "/api/webhook/user-signup"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorKeepsOuterMessage(t *testing.T) {
	err := fmt.Errorf("persistence_error: %w", errors.New(`duplicate value "bob@example.com"`))
	assert.Equal(t, "persistence_error", SafeError(err).Error())
	assert.Nil(t, SafeError(nil))
}
