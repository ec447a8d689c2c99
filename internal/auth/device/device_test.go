package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"":        "unknown device",
		"   ":     "unknown device",
		"garbage": "unknown device",
	}
	for in, want := range cases {
		assert.Equal(t, want, Label(in))
	}

	firefox := Label("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	assert.Contains(t, firefox, "firefox")
	assert.Contains(t, firefox, "linux")

	mobile := Label("Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1")
	assert.Contains(t, mobile, "(mobile)")
}
