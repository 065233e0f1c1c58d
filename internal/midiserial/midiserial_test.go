package midiserial

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevPTYRoundTripsBytes(t *testing.T) {
	d, err := OpenDevPTY()
	require.NoError(t, err)
	defer d.Close()

	w, err := os.OpenFile(d.SlavePath(), os.O_WRONLY, 0)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte{0x90, 0x40, 0x7f})
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	buf := make([]byte, 16)
	var n int

	for time.Now().Before(deadline) {
		n = d.Read(buf)
		if n > 0 {
			break
		}
	}

	assert.Equal(t, []byte{0x90, 0x40, 0x7f}, buf[:n])
}
