// Command streamrecv is a demo UDP receiver: it reads RTP-framed Opus
// packets off a socket, feeds them through an InboundStream, and plays
// the resulting PCM out through PortAudio. It exists to give the
// network, codec, and playback dependencies a concrete home around the
// stream core, the way the teacher repository's audio.go wires
// PortAudio and Opus around its own jitter package.
package main

import (
	"log"
	"net"
	"time"

	"github.com/gordonklaus/portaudio"

	stream "inboundstream"
	"inboundstream/internal/config"
	"inboundstream/internal/opusaudio"
)

const maxUDPPacket = 1500

func main() {
	cfg := config.Load()

	props, err := buildProperties(cfg)
	if err != nil {
		log.Fatalf("[streamrecv] build stream properties: %v", err)
	}

	settings := stream.DefaultSettings()
	settings.DynamicJitterBuffers = cfg.DynamicJitterBuffers
	settings.StaticDesiredJitterBufferFrames = cfg.StaticDesiredJitterBufferFrames
	settings.UseStdDev = cfg.UseStdDev
	settings.MaxFramesOverDesired = cfg.MaxFramesOverDesired
	settings.WindowStarveThreshold = cfg.WindowStarveThreshold
	settings.FrameDurationUsec = float64(cfg.FrameSampleCount) * 1_000_000 / float64(cfg.SampleRate)

	s, err := stream.New(props, cfg.FrameSampleCount, cfg.FrameCapacity, settings)
	if err != nil {
		log.Fatalf("[streamrecv] new stream: %v", err)
	}
	s.SetLogger(log.Default())

	conn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("[streamrecv] listen %s: %v", cfg.ListenAddr, err)
	}
	defer conn.Close()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[streamrecv] portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	playbackStream, playbackBuf, err := openPlayback(cfg)
	if err != nil {
		log.Fatalf("[streamrecv] open playback: %v", err)
	}
	if err := playbackStream.Start(); err != nil {
		log.Fatalf("[streamrecv] start playback: %v", err)
	}
	defer playbackStream.Stop()
	defer playbackStream.Close()

	stopCh := make(chan struct{})
	go tickLoop(s, stopCh)
	go statsLoop(s, stopCh)
	go playbackLoop(s, playbackStream, playbackBuf, cfg)

	log.Printf("[streamrecv] listening on %s", cfg.ListenAddr)
	receiveLoop(conn, s)
	close(stopCh)
}

func receiveLoop(conn net.PacketConn, s *stream.InboundStream) {
	buf := make([]byte, maxUDPPacket)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			log.Printf("[streamrecv] read: %v", err)
			return
		}
		s.ParseData(buf[:n])
	}
}

func tickLoop(s *stream.InboundStream, stopCh <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			s.PerSecondTick()
		}
	}
}

func statsLoop(s *stream.InboundStream, stopCh <-chan struct{}) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			st := s.Stats()
			log.Printf("[streamrecv] desired=%d avail=%d avg=%.1f starves=%d overflow=%d malformed=%d",
				st.DesiredFrames, st.FramesAvailable, st.FramesAvailableAvg, st.StarveCount, st.OverflowCount, st.MalformedPackets)
		}
	}
}

func playbackLoop(s *stream.InboundStream, out *portaudio.Stream, buf []float32, cfg config.Config) {
	wanted := cfg.FrameSampleCount * cfg.Channels
	for {
		n := s.PopSamples(wanted, false, true)
		pcm := s.LastPopOutput()
		for i := range buf {
			if i < n && i < len(pcm) {
				buf[i] = float32(pcm[i]) / 32768.0
			} else {
				buf[i] = 0
			}
		}
		if err := out.Write(); err != nil {
			log.Printf("[streamrecv] playback write: %v", err)
			return
		}
	}
}

func buildProperties(cfg config.Config) (stream.StreamProperties, error) {
	if !cfg.UseOpus {
		return stream.DefaultProperties{}, nil
	}
	return opusaudio.New(cfg.SampleRate, cfg.Channels, cfg.FrameSampleCount)
}

func openPlayback(cfg config.Config) (*portaudio.Stream, []float32, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, err
	}
	dev, err := resolveDevice(devices, cfg.OutputDeviceID)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]float32, cfg.FrameSampleCount*cfg.Channels)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FrameSampleCount,
	}
	s, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, nil, err
	}
	return s, buf, nil
}

func resolveDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultOutputDevice()
}
