package mdns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceTypeMatchesAppleMidiBonjourType(t *testing.T) {
	assert.Equal(t, "_apple-midi._udp", ServiceType)
}
