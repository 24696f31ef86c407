// Package starve tracks how often the outbound side has drained the
// ring buffer dry (a "starve" event, i.e. PopFrames/PopSamples failing
// for lack of data) and decides when that rate is high enough that the
// depth policy should grow the ring rather than let it keep starving.
package starve

// Controller counts starve events per second and reports whether
// recent history crossed the too-many-starves threshold. The caller
// provisions the history ring for whatever window it actually intends
// to query (windowSecondsForDesiredCalcOnTooManyStarves is itself a
// Settings value, not a fixed constant), so the ring never silently
// truncates a longer window to less history than it holds.
type Controller struct {
	history []uint32 // per-second starve counts, oldest-to-newest ending at curIdx
	curIdx  int
	Total   uint64
	forced  bool
}

// New returns a Controller whose history ring holds at least
// windowSeconds seconds of per-second starve counts.
func New(windowSeconds int) *Controller {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	return &Controller{history: make([]uint32, windowSeconds)}
}

// RecordStarve marks one starve event in the current second's slot.
func (c *Controller) RecordStarve() {
	c.history[c.curIdx]++
	c.Total++
}

// Tick advances to a new one-second slot, per-second cadence matching
// the stream's PerSecondTick.
func (c *Controller) Tick() {
	c.curIdx = (c.curIdx + 1) % len(c.history)
	c.history[c.curIdx] = 0
}

// growTo grows the history ring to at least n slots, preserving existing
// counts in chronological order so the current second remains the most
// recent entry. This only runs if a caller queries a window wider than
// the ring was constructed for (e.g. SetSettings widening
// windowSecondsForDesiredCalcOnTooManyStarves at runtime) — the newly
// added, older slots have no recorded data and start at zero.
func (c *Controller) growTo(n int) {
	if n <= len(c.history) {
		return
	}
	grown := make([]uint32, n)
	for i := 0; i < len(c.history); i++ {
		src := (c.curIdx - i + len(c.history)) % len(c.history)
		grown[len(grown)-1-i] = c.history[src]
	}
	c.history = grown
	c.curIdx = len(grown) - 1
}

// countWindow sums starve events across the last n one-second slots,
// including the current one.
func (c *Controller) countWindow(n int) uint32 {
	if n <= 0 {
		return 0
	}
	c.growTo(n)
	var total uint32
	idx := c.curIdx
	for i := 0; i < n; i++ {
		total += c.history[idx]
		idx--
		if idx < 0 {
			idx = len(c.history) - 1
		}
	}
	return total
}

// TooManyStarves reports whether at least threshold starve events
// occurred within the last windowSeconds seconds, or whether the stream
// has been administratively forced into the starved state via
// ForceStarved.
func (c *Controller) TooManyStarves(windowSeconds int, threshold uint32) bool {
	if c.forced {
		return true
	}
	return c.countWindow(windowSeconds) >= threshold
}

// ForceStarved administratively marks the stream as starved regardless
// of recent history, until ClearIfRecovered or Reset runs. Used by the
// public SetToStarved API to force an immediate depth reassessment.
func (c *Controller) ForceStarved() {
	c.forced = true
}

// ClearIfRecovered drops the forced-starved flag once recent history no
// longer shows starvation, so a one-shot SetToStarved call doesn't pin
// the stream in the starved state forever.
func (c *Controller) ClearIfRecovered(windowSeconds int, threshold uint32) {
	if c.forced && c.countWindow(windowSeconds) < threshold {
		c.forced = false
	}
}

// Reset clears history, the forced flag, and the cumulative total —
// the heavier administrative reset behind the stream's public
// Reset/ResetStats. The ring's capacity is unchanged.
func (c *Controller) Reset() {
	for i := range c.history {
		c.history[i] = 0
	}
	c.curIdx = 0
	c.forced = false
	c.Total = 0
}
