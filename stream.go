// Package stream implements the inbound audio jitter buffer and stream
// receiver: it accepts datagram-delivered audio packets from a remote
// source, absorbs network jitter, compensates for loss and reorder, and
// exposes a frame-aligned sample stream to a local playback consumer.
//
// InboundStream adapts its buffering depth to observed network
// conditions so that playback rarely starves while end-to-end latency
// stays as low as the network allows. It composes internal/ring,
// internal/seqtrack, internal/jitterstats, internal/starve, and
// internal/depth; the packet header framing and the audio payload
// decoding are supplied by the caller through StreamProperties.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync/atomic"
	"time"

	"inboundstream/internal/depth"
	"inboundstream/internal/jitterstats"
	"inboundstream/internal/ring"
	"inboundstream/internal/rtpwire"
	"inboundstream/internal/seqtrack"
	"inboundstream/internal/starve"
)

// Wire-visible constants, named per the stream's external stats surface.
const (
	DesiredJitterBufferFramesPadding = depth.Padding
	StatsForStatsPacketWindowSeconds = 30
	FramesAvailableStatWindowUsecs   = 2_000_000
	InboundRingBufferFrameCapacity   = 100
	NumStddevsForDesiredJitter       = 3
)

// ErrInvalidGeometry is returned by New when the stream's frame geometry
// is misconfigured.
var ErrInvalidGeometry = errors.New("stream: invalid geometry")

// ParseError wraps a StreamProperties failure so callers can errors.As
// it; ParseData itself never returns an error, per the "no operation
// ever propagates a failure" contract — it folds ParseError into the
// MalformedPackets counter instead.
type ParseError struct {
	PacketType byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stream: parse error (packet type %d): %v", e.PacketType, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Settings holds every tunable of the stream, all mutable and
// effective on the next producer operation (ParseData or
// PerSecondTick) after SetSettings.
type Settings struct {
	MaxFramesOverDesired                         int
	DynamicJitterBuffers                         bool
	StaticDesiredJitterBufferFrames              int
	UseStdDev                                    bool
	WindowStarveThreshold                        int
	WindowSecondsForDesiredCalcOnTooManyStarves  int
	WindowSecondsForDesiredReduction             int

	// FrameDurationUsec is the wall-clock duration of one frame, used to
	// convert the F/P timegap estimators (expressed in microseconds)
	// into frames. It is a property of the stream's audio format, not a
	// network-adaptive knob, but it travels with Settings so New's
	// signature stays a single struct rather than a separate parameter.
	FrameDurationUsec float64
}

// DefaultSettings returns the defaults from the stream's data model.
func DefaultSettings() Settings {
	return Settings{
		MaxFramesOverDesired:            10,
		DynamicJitterBuffers:            true,
		StaticDesiredJitterBufferFrames: 1,
		UseStdDev:                       false,
		WindowStarveThreshold:           3,
		WindowSecondsForDesiredCalcOnTooManyStarves: 50,
		WindowSecondsForDesiredReduction:            10,
		FrameDurationUsec:                           20000,
	}
}

// AudioStreamStats is a snapshot of the stream's counters and estimator
// output, safe to read from the timer thread.
type AudioStreamStats struct {
	DesiredFrames      int
	FramesAvailable    int
	FramesAvailableAvg float64

	StarveCount         uint64
	SilentFramesDropped uint64
	OverflowCount       uint64
	OldFramesDropped    uint64
	PacketsReceived     uint64
	MalformedPackets    uint64

	TimeGapMinUsec    float64
	TimeGapMaxUsec    float64
	TimeGapAvgUsec    float64
	TimeGapStdDevUsec float64
}

// StreamProperties is the capability interface a caller supplies to
// interpret packet payloads: how many audio samples a payload carries,
// and how to decode those samples. This replaces the base-class
// dynamic dispatch of the system this module is modeled on with a
// plain Go interface.
type StreamProperties interface {
	ParseProperties(packetType byte, payload []byte) (numAudioSamples int, rest []byte, err error)
	ParseAudio(packetType byte, payload []byte, numAudioSamples int) ([]int16, error)
}

// DefaultProperties is the documented default StreamProperties: raw
// little-endian int16 PCM, one sample per two payload bytes, no
// separate properties header to strip.
type DefaultProperties struct{}

func (DefaultProperties) ParseProperties(packetType byte, payload []byte) (int, []byte, error) {
	if len(payload) < 2 {
		return 0, nil, &ParseError{PacketType: packetType, Err: errors.New("payload too short for PCM")}
	}
	return len(payload) / 2, payload, nil
}

func (DefaultProperties) ParseAudio(packetType byte, payload []byte, numAudioSamples int) ([]int16, error) {
	if len(payload) < numAudioSamples*2 {
		return nil, &ParseError{PacketType: packetType, Err: errors.New("payload shorter than numAudioSamples")}
	}
	out := make([]int16, numAudioSamples)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return out, nil
}

// twAvg computes a time-weighted average of a sampled value, flushed
// every FramesAvailableStatWindowUsecs of accumulated wall time.
type twAvg struct {
	lastSampleAt  time.Time
	lastValue     float64
	weightedSum   float64
	windowElapsed time.Duration
	current       float64
}

func (a *twAvg) sample(now time.Time, value float64) {
	if !a.lastSampleAt.IsZero() {
		dt := now.Sub(a.lastSampleAt)
		a.weightedSum += a.lastValue * float64(dt)
		a.windowElapsed += dt
	}
	a.lastValue = value
	a.lastSampleAt = now
	if a.windowElapsed >= FramesAvailableStatWindowUsecs*time.Microsecond {
		a.current = a.weightedSum / float64(a.windowElapsed)
		a.weightedSum = 0
		a.windowElapsed = 0
	}
}

func (a *twAvg) Average() float64 { return a.current }

// seed sets the current average directly, used at construction and on
// Reset so the loss-fill "comfortably above target" comparison has a
// sane baseline before the first full measurement window elapses,
// instead of defaulting to zero (which would make every early fill
// look droppable).
func (a *twAvg) seed(v float64) {
	a.current = v
	a.weightedSum = 0
	a.windowElapsed = 0
	a.lastSampleAt = time.Time{}
}

// InboundStream is the stream receiver: the StreamFront component that
// ties RingBuffer, SequenceTracker, the jitter estimators, and
// StarveController together behind the external operations a consumer
// and a timer thread call.
//
// Threading contract: one producer goroutine calls ParseData/SetSettings,
// one consumer goroutine calls PopFrames/PopSamples/SetToStarved, one
// timer goroutine calls PerSecondTick/Stats. Not safe for any other
// concurrent access pattern.
type InboundStream struct {
	props StreamProperties

	ring      *ring.Buffer
	seq       *seqtrack.Tracker
	gapStats  *jitterstats.Stats
	starveCtl *starve.Controller

	settings atomic.Pointer[Settings]
	logger   *log.Logger

	desiredFrames  int
	hasLastArrival bool
	lastArrival    time.Time

	hasStarted bool
	isStarved  bool

	starveCount         uint64
	silentFramesDropped uint64
	oldFramesDropped    uint64
	malformedPackets    uint64

	framesAvailAvg twAvg
}

// New constructs an InboundStream over a ring sized for frameCapacity
// frames of frameSampleCount samples each, using props to interpret
// packet payloads.
func New(props StreamProperties, frameSampleCount, frameCapacity int, settings Settings) (*InboundStream, error) {
	rb, err := ring.New(frameSampleCount, frameCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	s := &InboundStream{
		props:     props,
		ring:      rb,
		seq:       seqtrack.New(),
		gapStats:  jitterstats.New(gapStatsWindowCapacity(&settings)),
		starveCtl: starve.New(settings.WindowSecondsForDesiredCalcOnTooManyStarves),
		logger:    log.New(io.Discard, "", 0),
	}
	s.settings.Store(&settings)
	s.desiredFrames = clampFrames(settings.StaticDesiredJitterBufferFrames, 0, s.maxDesired(&settings))
	s.framesAvailAvg.seed(float64(s.desiredFrames))
	return s, nil
}

// SetLogger installs a logger for resync/reset events. A nil logger
// restores the discard default. Never called on the hot per-packet
// path.
func (s *InboundStream) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s.logger = logger
}

func clampFrames(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *InboundStream) maxDesired(settings *Settings) int {
	hi := s.ring.FrameCapacity() - settings.MaxFramesOverDesired
	if hi < 0 {
		hi = 0
	}
	return hi
}

// gapStatsWindowCapacity sizes the jitter estimator's bucket ring to
// cover every window it will be asked about: the too-many-starves
// growth window, the reduction-shrink window, and the fixed 30s stats
// snapshot — whichever of the three is largest.
func gapStatsWindowCapacity(settings *Settings) int {
	n := StatsForStatsPacketWindowSeconds
	if settings.WindowSecondsForDesiredCalcOnTooManyStarves > n {
		n = settings.WindowSecondsForDesiredCalcOnTooManyStarves
	}
	if settings.WindowSecondsForDesiredReduction > n {
		n = settings.WindowSecondsForDesiredReduction
	}
	return n
}

// ParseData decodes one packet: parses the RTP-style header, classifies
// its sequence number, and routes it to the resync, duplicate, late, or
// ontime/early handling per the stream's packet-acceptance algorithm.
// Always returns normally; malformed input is counted, never returned
// as an error.
func (s *InboundStream) ParseData(packet []byte) int {
	settings := s.settings.Load()

	hdr, err := rtpwire.Parse(packet)
	if err != nil {
		s.malformedPackets++
		return 0
	}

	result := s.seq.Classify(hdr.SequenceNumber)

	switch result.Class {
	case seqtrack.Unreasonable:
		s.logger.Printf("[stream] unreasonable sequence jump (seq=%d): resyncing", hdr.SequenceNumber)
		s.seq.Resync()
		s.ring.Clear()
		s.hasStarted = false
		s.isStarved = false
		return len(packet)

	case seqtrack.Duplicate:
		return len(packet)

	case seqtrack.Late:
		s.handleLate(hdr, result.Gap)
		return len(packet)
	}

	numAudioSamples, rest, err := s.props.ParseProperties(hdr.PayloadType, hdr.Payload)
	if err != nil {
		s.malformedPackets++
		return len(packet) - len(hdr.Payload)
	}

	if result.Class == seqtrack.Early && result.Gap > 0 {
		s.writeSamplesForDroppedPackets(result.Gap, numAudioSamples)
	}

	samples, err := s.props.ParseAudio(hdr.PayloadType, rest, numAudioSamples)
	if err != nil {
		s.malformedPackets++
		return len(packet) - len(rest)
	}
	s.ring.WriteSamples(samples)

	now := time.Now()
	if s.hasLastArrival {
		gapUsec := float64(now.Sub(s.lastArrival).Microseconds())
		s.gapStats.RecordGap(gapUsec)
	}
	s.lastArrival = now
	s.hasLastArrival = true

	s.growOnParse(settings)
	s.trimIfNeeded(settings)
	s.sampleFramesAvailable(now)

	return len(packet)
}

// handleLate writes a reordered packet's audio into its historical ring
// slot if that slot is still addressable (not yet popped, not older
// than the ring's capacity), per the back-write-when-addressable policy.
// offsetFrames assumes one packet carries one frame's worth of audio,
// which holds for both DefaultProperties and the Opus-aware properties
// this module ships.
func (s *InboundStream) handleLate(hdr rtpwire.Header, offsetFrames int) {
	numAudioSamples, rest, err := s.props.ParseProperties(hdr.PayloadType, hdr.Payload)
	if err != nil {
		s.malformedPackets++
		return
	}
	samples, err := s.props.ParseAudio(hdr.PayloadType, rest, numAudioSamples)
	if err != nil {
		s.malformedPackets++
		return
	}
	s.ring.WriteAt(offsetFrames, samples)
}

// writeSamplesForDroppedPackets loss-fills for gap missing packets, each
// worth numAudioSamples silent samples. A packet's silent fill is
// dropped entirely, rather than written, whenever the ring is already
// at or above its time-weighted average depth — writing it would only
// push latency further above target.
func (s *InboundStream) writeSamplesForDroppedPackets(gap, numAudioSamples int) {
	for i := 0; i < gap; i++ {
		if float64(s.ring.FramesAvailable()) >= s.framesAvailAvg.Average() {
			s.silentFramesDropped++
			continue
		}
		s.ring.WriteSilent(numAudioSamples)
	}
}

// candidateFrames evaluates the selected jitter estimator (F or P) over
// windowSeconds and converts it to whole frames.
func (s *InboundStream) candidateFrames(settings *Settings, windowSeconds int) int {
	if settings.FrameDurationUsec <= 0 {
		return 0
	}
	var est float64
	if settings.UseStdDev {
		est = NumStddevsForDesiredJitter * s.gapStats.StdDev(windowSeconds) / settings.FrameDurationUsec
	} else {
		est = s.gapStats.MaxGap(windowSeconds) / settings.FrameDurationUsec
	}
	if est < 0 {
		est = 0
	}
	return int(math.Ceil(est))
}

// growOnParse applies the DepthPolicy growth branch from the parse
// path: desiredFrames only ever grows here, never shrinks.
func (s *InboundStream) growOnParse(settings *Settings) {
	tooMany := s.starveCtl.TooManyStarves(settings.WindowSecondsForDesiredCalcOnTooManyStarves, uint32(settings.WindowStarveThreshold))
	candidate := s.candidateFrames(settings, settings.WindowSecondsForDesiredCalcOnTooManyStarves)
	s.desiredFrames = depth.Compute(depth.Params{
		DynamicJitterBuffers: settings.DynamicJitterBuffers,
		StaticDesiredFrames:  settings.StaticDesiredJitterBufferFrames,
		Candidate:            candidate,
		TooManyStarves:       tooMany,
		ShrinkTo:             -1,
		CurrentDesiredFrames: s.desiredFrames,
		FrameCapacity:        s.ring.FrameCapacity(),
		MaxFramesOverDesired: settings.MaxFramesOverDesired,
	})
}

func (s *InboundStream) trimIfNeeded(settings *Settings) {
	limit := s.desiredFrames + settings.MaxFramesOverDesired
	if s.ring.FramesAvailable() <= limit {
		return
	}
	excess := s.ring.FramesAvailable() - s.desiredFrames
	dropped := s.ring.DropFrames(excess)
	s.oldFramesDropped += uint64(dropped)
}

func (s *InboundStream) sampleFramesAvailable(now time.Time) {
	s.framesAvailAvg.sample(now, float64(s.ring.FramesAvailable()))
}

// recordStarve marks a failed pop: counts it, appends it to
// StarveController's history, and — if that crosses the too-many-
// starves threshold — immediately grows desiredFrames.
func (s *InboundStream) recordStarve() {
	settings := s.settings.Load()
	s.starveCount++
	s.isStarved = true
	s.starveCtl.RecordStarve()

	if !s.starveCtl.TooManyStarves(settings.WindowSecondsForDesiredCalcOnTooManyStarves, uint32(settings.WindowStarveThreshold)) {
		return
	}
	candidate := s.candidateFrames(settings, settings.WindowSecondsForDesiredCalcOnTooManyStarves)
	grown := candidate + DesiredJitterBufferFramesPadding
	if grown <= s.desiredFrames {
		return
	}
	if hi := s.maxDesired(settings); grown > hi {
		grown = hi
	}
	s.desiredFrames = grown
}

// PopFrames pops up to maxFrames frames. If allOrNothing is set and
// fewer than maxFrames are available, it pops nothing. On a zero pop
// with starveIfNoFramesPopped set, a starve is recorded.
func (s *InboundStream) PopFrames(maxFrames int, allOrNothing, starveIfNoFramesPopped bool) int {
	avail := s.ring.FramesAvailable()
	if maxFrames <= 0 || (allOrNothing && avail < maxFrames) || avail == 0 {
		if starveIfNoFramesPopped {
			s.recordStarve()
		}
		s.ring.PopFrames(0)
		return 0
	}

	n := maxFrames
	if n > avail {
		n = avail
	}
	if _, ok := s.ring.PopFrames(n); !ok {
		if starveIfNoFramesPopped {
			s.recordStarve()
		}
		return 0
	}

	s.hasStarted = true
	if s.ring.FramesAvailable() >= s.desiredFrames {
		s.isStarved = false
	}
	s.sampleFramesAvailable(time.Now())
	return n
}

// PopSamples is the sample-granularity analog of PopFrames; the ring
// only pops whole frames, so maxSamples is rounded down to the nearest
// whole frame before popping.
func (s *InboundStream) PopSamples(maxSamples int, allOrNothing, starveIfNoSamplesPopped bool) int {
	frameSampleCount := s.ring.FrameSampleCount()
	maxFrames := maxSamples / frameSampleCount
	framesPopped := s.PopFrames(maxFrames, allOrNothing, starveIfNoSamplesPopped)
	return framesPopped * frameSampleCount
}

// LastPopSucceeded reports whether the most recent pop attempt returned
// any frames.
func (s *InboundStream) LastPopSucceeded() bool { return s.ring.LastPopSucceeded() }

// LastPopOutput returns the samples from the most recent successful pop.
func (s *InboundStream) LastPopOutput() []int16 { return s.ring.LastPopOutput() }

// SetToStarved forces the stream into the starved state, for a
// consumer that detects silence externally (e.g. a playback underrun)
// and wants the depth policy to react as if a pop had failed.
func (s *InboundStream) SetToStarved() {
	s.isStarved = true
	s.starveCtl.ForceStarved()
}

// ClearBuffer drops all buffered frames without resetting any stats.
func (s *InboundStream) ClearBuffer() {
	s.ring.Clear()
}

// ResetStats zeroes every cumulative counter and estimator window
// without touching the ring contents or the sequence baseline. The
// ring's overflow count is not zeroed here; only Reset clears it.
func (s *InboundStream) ResetStats() {
	s.seq.ResetCounters()
	s.gapStats.Reset()
	s.starveCtl.Reset()
	s.malformedPackets = 0
	s.starveCount = 0
	s.silentFramesDropped = 0
	s.oldFramesDropped = 0
	s.framesAvailAvg = twAvg{}
}

// Reset clears the buffer, resets all stats, and resyncs the sequence
// tracker — the full administrative reset. Two consecutive Reset calls
// leave the stream in the same state.
func (s *InboundStream) Reset() {
	s.logger.Printf("[stream] reset")
	s.ring.FullReset()
	s.ResetStats()
	s.seq.Resync()
	s.hasStarted = false
	s.isStarved = false
	settings := s.settings.Load()
	s.desiredFrames = clampFrames(settings.StaticDesiredJitterBufferFrames, 0, s.maxDesired(settings))
	s.framesAvailAvg.seed(float64(s.desiredFrames))
}

// SetSettings publishes new Settings, effective on the next producer
// operation.
func (s *InboundStream) SetSettings(settings Settings) {
	s.settings.Store(&settings)
}

// PerSecondTick advances the per-second windows, recomputes the F/P
// estimators, applies the DepthPolicy shrink rule when the
// too-many-starves window is not active, and refreshes the
// time-weighted framesAvailable average.
func (s *InboundStream) PerSecondTick() {
	settings := s.settings.Load()

	s.gapStats.Tick()
	s.starveCtl.Tick()
	s.starveCtl.ClearIfRecovered(settings.WindowSecondsForDesiredCalcOnTooManyStarves, uint32(settings.WindowStarveThreshold))

	tooMany := s.starveCtl.TooManyStarves(settings.WindowSecondsForDesiredCalcOnTooManyStarves, uint32(settings.WindowStarveThreshold))
	candidate := s.candidateFrames(settings, settings.WindowSecondsForDesiredCalcOnTooManyStarves)

	shrinkTo := -1
	if !tooMany && settings.FrameDurationUsec > 0 && s.gapStats.SampleCount(settings.WindowSecondsForDesiredReduction) > 0 {
		shrinkMaxGap := s.gapStats.MaxGap(settings.WindowSecondsForDesiredReduction)
		shrinkTo = int(math.Ceil(shrinkMaxGap / settings.FrameDurationUsec))
	}

	s.desiredFrames = depth.Compute(depth.Params{
		DynamicJitterBuffers: settings.DynamicJitterBuffers,
		StaticDesiredFrames:  settings.StaticDesiredJitterBufferFrames,
		Candidate:            candidate,
		TooManyStarves:       tooMany,
		ShrinkTo:             shrinkTo,
		CurrentDesiredFrames: s.desiredFrames,
		FrameCapacity:        s.ring.FrameCapacity(),
		MaxFramesOverDesired: settings.MaxFramesOverDesired,
	})

	s.trimIfNeeded(settings)
	s.sampleFramesAvailable(time.Now())
}

// Stats returns a snapshot of the stream's counters and estimator
// output, safe to call from the timer thread at any time.
func (s *InboundStream) Stats() AudioStreamStats {
	return AudioStreamStats{
		DesiredFrames:      s.desiredFrames,
		FramesAvailable:    s.ring.FramesAvailable(),
		FramesAvailableAvg: s.framesAvailAvg.Average(),

		StarveCount:         s.starveCount,
		SilentFramesDropped: s.silentFramesDropped,
		OverflowCount:       s.ring.GetOverflowCount(),
		OldFramesDropped:    s.oldFramesDropped,
		PacketsReceived:     s.seq.Received,
		MalformedPackets:    s.malformedPackets,

		TimeGapMinUsec:    s.gapStats.MinGap(StatsForStatsPacketWindowSeconds),
		TimeGapMaxUsec:    s.gapStats.MaxGap(StatsForStatsPacketWindowSeconds),
		TimeGapAvgUsec:    s.gapStats.Mean(StatsForStatsPacketWindowSeconds),
		TimeGapStdDevUsec: s.gapStats.StdDev(StatsForStatsPacketWindowSeconds),
	}
}
