package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaudSupported(t *testing.T) {
	for _, rate := range []int{9600, 115200, 1000000, 4000000} {
		assert.True(t, BaudSupported(rate), "rate %d", rate)
	}
	for _, rate := range []int{0, -9600, 12345, 128000, 5000000} {
		assert.False(t, BaudSupported(rate), "rate %d", rate)
	}
}

func TestOpenRejectsUnsupportedBaud(t *testing.T) {
	_, err := Open("/dev/null", 12345)
	assert.ErrorContains(t, err, "unsupported baud rate")
}
