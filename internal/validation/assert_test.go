package validation

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertNotNil(t *testing.T) {
	t.Parallel()

	var missing *int
	value := 1

	assert.PanicsWithValue(t, "critical error: counter cannot be nil", func() { AssertNotNil(missing, "counter") })
	assert.NotPanics(t, func() { AssertNotNil(&value, "counter") })
}

func TestAssertPresent(t *testing.T) {
	t.Parallel()

	var w io.Writer

	assert.PanicsWithValue(t, "critical error: writer cannot be nil", func() { AssertPresent(w, "writer") })
	assert.NotPanics(t, func() { AssertPresent(io.Discard, "writer") })
}
