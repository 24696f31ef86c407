// Package opusaudio implements the Opus-aware StreamProperties
// collaborator: it decodes the fixed-size Opus frame carried in each
// packet's payload into raw PCM samples for the ring buffer. Opus
// itself carries no explicit sample count in its payload; the frame
// size is a per-stream constant fixed at construction, matching how
// the surrounding codebase's own encoder/decoder pairing is configured.
package opusaudio

import (
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// ErrMalformedPayload is returned by ParseProperties when the payload is
// empty, and wrapped by ParseAudio when the underlying Opus decode fails.
var ErrMalformedPayload = errors.New("opusaudio: malformed payload")

// decoder abstracts *opus.Decoder so tests can supply a fake without
// linking libopus.
type decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Properties is a StreamProperties implementation for Opus-encoded
// streams: every packet carries exactly one Opus frame of
// frameSampleCount samples (per channel, interleaved).
type Properties struct {
	frameSampleCount int
	channels         int
	dec              decoder
}

// New constructs an Opus-aware Properties. frameSampleCount is the
// fixed number of samples per channel in each decoded frame (e.g. 960
// for 20ms at 48kHz).
func New(sampleRate, channels, frameSampleCount int) (*Properties, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opusaudio: new decoder: %w", err)
	}
	return &Properties{
		frameSampleCount: frameSampleCount,
		channels:         channels,
		dec:              dec,
	}, nil
}

// ParseProperties reports the frame's fixed sample count. The payload
// is returned unchanged: Opus carries no separate properties header to
// strip, unlike a raw-PCM stream that might prefix a count.
func (p *Properties) ParseProperties(packetType byte, payload []byte) (int, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, ErrMalformedPayload
	}
	return p.frameSampleCount, payload, nil
}

// ParseAudio decodes the Opus payload into numAudioSamples samples per
// channel, returned as interleaved int16 PCM (numAudioSamples*channels
// values for a full frame).
func (p *Properties) ParseAudio(packetType byte, payload []byte, numAudioSamples int) ([]int16, error) {
	pcm := make([]int16, numAudioSamples*p.channels)
	n, err := p.dec.Decode(payload, pcm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return pcm[:n*p.channels], nil
}
