package audiorec

import (
	"context"
	"encoding/binary"

	"github.com/gen2brain/malgo"

	"github.com/robudan/acoustic-logger/internal/errors"
)

// Source supplies mono 16-bit PCM frames from the sensor's capture
// device. ReadChunk blocks until n frames are available or ctx is
// cancelled.
type Source interface {
	ReadChunk(ctx context.Context, n int) ([]int16, error)
	Close() error
}

// malgoSource is the malgo-backed Source, grounded on the
// callback-driven capture pattern used throughout the pack's malgo
// example code (DeviceCallbacks.Data pushing frames into a buffer that
// the reader side drains).
type malgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	frames chan int16
}

// NewMalgoSource opens the default capture device at sampleRate, mono,
// 16-bit.
func NewMalgoSource(sampleRate int) (Source, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, errors.New(err).
			Component("audiorec").
			Category(errors.CategoryAudioSource).
			Build()
	}

	s := &malgoSource{
		ctx: malgoCtx,
		// buffered generously: four seconds of mono audio at sampleRate,
		// so the capture callback never blocks on a slow reader.
		frames: make(chan int16, sampleRate*4),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(output, input []byte, frameCount uint32) {
			for i := 0; i+1 < len(input); i += 2 {
				sample := int16(binary.LittleEndian.Uint16(input[i : i+2]))
				select {
				case s.frames <- sample:
				default:
					// drop the sample rather than block the capture callback
				}
			}
		},
	})
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, errors.New(err).
			Component("audiorec").
			Category(errors.CategoryAudioSource).
			Build()
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, errors.New(err).
			Component("audiorec").
			Category(errors.CategoryAudioSource).
			Build()
	}

	return s, nil
}

func (s *malgoSource) ReadChunk(ctx context.Context, n int) ([]int16, error) {
	out := make([]int16, 0, n)
	for len(out) < n {
		select {
		case sample := <-s.frames:
			out = append(out, sample)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

func (s *malgoSource) Close() error {
	s.device.Uninit()
	s.ctx.Uninit()
	s.ctx.Free()
	return nil
}
