package log

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugfGatedByToggle(t *testing.T) {
	var b bytes.Buffer
	DebugLogger = log.New(&b, "DEBUG: ", stdLogFlags)

	SetDebug(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, b.String())

	SetDebug(true)
	defer SetDebug(false)
	Debugf("shown %d", 2)
	assert.Contains(t, b.String(), "shown 2")
}

func TestSuppressOutput(t *testing.T) {
	SuppressOutput(true)
	Infof("swallowed")
	SuppressOutput(false)
}
