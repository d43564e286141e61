package appconfig

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	base := &ConfigError{Kind: ErrorStore, Message: "write failed"}

	assert.True(t, IsKind(base, ErrorStore))
	assert.False(t, IsKind(base, ErrorValidation))

	wrapped := fmt.Errorf("saving configuration: %w", base)
	assert.True(t, IsKind(wrapped, ErrorStore))
	assert.False(t, IsKind(wrapped, ErrorValidation))

	assert.False(t, IsKind(errors.New("plain error"), ErrorStore))
	assert.False(t, IsKind(nil, ErrorStore))
}
