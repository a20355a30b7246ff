package ptrs

import (
	"testing"

	"gotest.tools/assert"
)

func TestPtr(t *testing.T) {
	p := Ptr("bucket")
	assert.Equal(t, *p, "bucket")
	assert.Equal(t, Deref(p), "bucket")

	var nilInt *int
	assert.Equal(t, Deref(nilInt), 0)
}
