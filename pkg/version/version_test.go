package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	InitBinaryVersion()

	got := String()

	assert.Contains(t, got, "neardup "+Version)
	assert.Contains(t, got, "commit: "+Commit)
	assert.NotEmpty(t, Date)
}
