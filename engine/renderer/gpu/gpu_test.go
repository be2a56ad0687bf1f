package gpu

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spaghettifunk/rendercore/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code Code
		kind core.ErrorKind
	}{
		{OK, core.KindOk},
		{WasStillDrawing, core.KindTransient},
		{OutOfDate, core.KindTransient},
		{DeviceRemoved, core.KindDeviceLost},
		{DeviceHung, core.KindDeviceLost},
		{DeviceReset, core.KindDeviceLost},
		{DriverInternalError, core.KindDeviceLost},
		{NotCurrentlyAvailable, core.KindDeviceLost},
		{OutOfMemory, core.KindFatal},
		{Unsupported, core.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.code))
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("present", OK))

	err := Check("present", DeviceHung)
	assert.True(t, errors.Is(err, core.ErrDeviceLost))
	assert.True(t, core.IsDeviceLost(err))
	assert.Equal(t, DeviceHung, CodeOf(fmt.Errorf("frame: %w", err)))

	err = Check("create texture", OutOfMemory)
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Equal(t, core.KindFatal, core.KindOf(err))
}

func TestParsePresentMode(t *testing.T) {
	m, err := ParsePresentMode("FLIP")
	assert.NoError(t, err)
	assert.Equal(t, PresentFlip, m)

	m, err = ParsePresentMode("discard")
	assert.NoError(t, err)
	assert.Equal(t, PresentBlit, m)

	_, err = ParsePresentMode("mailbox")
	assert.Error(t, err)
}
