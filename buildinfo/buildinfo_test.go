package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	props := Get()
	assert.Equal(t, "dev", props.Version)
	assert.Equal(t, "dev (commit unknown, built unknown)", props.String())
}
