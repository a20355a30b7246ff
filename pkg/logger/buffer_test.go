package logger

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

func messages(entries []*Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func fill(b *Buffer, n int) {
	for i := 0; i < n; i++ {
		_ = b.Fire(&logrus.Entry{Message: fmt.Sprint(i)})
	}
}

func TestBufferSince(t *testing.T) {
	b := NewBuffer(4)
	assert.Equal(t, len(b.Since(0, -1)), 0)

	fill(b, 3)
	assert.DeepEqual(t, messages(b.Since(0, -1)), []string{"0", "1", "2"})
	assert.DeepEqual(t, messages(b.Since(1, 1)), []string{"1"})

	fill(b, 3)
	assert.Equal(t, b.Len(), 6)
	// Only the newest four survive.
	assert.DeepEqual(t, messages(b.Since(0, -1)), []string{"2", "0", "1", "2"})
	assert.Equal(t, b.Since(0, -1)[0].ID, 2)
	assert.Equal(t, len(b.Since(6, -1)), 0)
}

func TestBufferFields(t *testing.T) {
	b := NewBuffer(1)
	_ = b.Fire(&logrus.Entry{
		Message: "trained",
		Data:    logrus.Fields{"variant": "IMDB", "model": "pythia-70m"},
	})
	assert.Equal(t, b.Since(0, -1)[0].Message, `trained  model="pythia-70m" variant="IMDB"`)
}

func TestMergeContexts(t *testing.T) {
	merged := MergeContexts(Context{"a": 1, "b": 1}, Context{"b": 2})
	assert.DeepEqual(t, merged, Context{"a": 1, "b": 2})
}

func TestConfigValidate(t *testing.T) {
	assert.Equal(t, len(DefaultConfig().Validate()), 0)
	assert.Equal(t, len(Config{Level: "loud"}.Validate()), 1)
}
