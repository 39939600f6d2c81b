package timeline

import "sort"

// DefaultTempo is 120 BPM in microseconds per quarter note.
const DefaultTempo uint32 = 500000

// TickClock converts ticks to seconds at a single tempo.
type TickClock struct {
	resolution uint16
	tempo      uint32
}

// NewTickClock returns a clock at DefaultTempo. resolution must be positive.
func NewTickClock(resolution uint16) *TickClock {
	return &TickClock{resolution: resolution, tempo: DefaultTempo}
}

// Tempo returns the current tempo in microseconds per quarter note.
func (c *TickClock) Tempo() uint32 { return c.tempo }

// SetTempo changes the current tempo.
func (c *TickClock) SetTempo(microsPerQuarter uint32) { c.tempo = microsPerQuarter }

// Seconds converts a tick span at the current tempo.
func (c *TickClock) Seconds(deltaTicks int64) float64 {
	return float64(deltaTicks) * float64(c.tempo) / (float64(c.resolution) * 1e6)
}

// BPM returns the current tempo in beats per minute.
func (c *TickClock) BPM() float64 {
	return 60e6 / float64(c.tempo)
}

type tempoChange struct {
	tick  int64
	tempo uint32
}

type tempoSegment struct {
	tick    int64
	seconds float64
	tempo   uint32
}

// TempoMap converts absolute ticks to seconds across tempo changes.
type TempoMap struct {
	resolution uint16
	segments   []tempoSegment
}

// newTempoMap builds a map from changes listed in decode order. Changes are
// ordered by tick; at equal ticks the one decoded last wins.
func newTempoMap(resolution uint16, changes []tempoChange) *TempoMap {
	sorted := make([]tempoChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].tick < sorted[j].tick })

	m := &TempoMap{resolution: resolution}
	m.segments = append(m.segments, tempoSegment{tick: 0, seconds: 0, tempo: DefaultTempo})

	clock := NewTickClock(resolution)
	for _, ch := range sorted {
		last := &m.segments[len(m.segments)-1]
		if ch.tick == last.tick {
			last.tempo = ch.tempo
			continue
		}
		clock.SetTempo(last.tempo)
		m.segments = append(m.segments, tempoSegment{
			tick:    ch.tick,
			seconds: last.seconds + clock.Seconds(ch.tick-last.tick),
			tempo:   ch.tempo,
		})
	}
	return m
}

// Seconds returns the elapsed time at an absolute tick position.
func (m *TempoMap) Seconds(tick int64) float64 {
	i := sort.Search(len(m.segments), func(i int) bool { return m.segments[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	seg := m.segments[i]
	clock := TickClock{resolution: m.resolution, tempo: seg.tempo}
	return seg.seconds + clock.Seconds(tick-seg.tick)
}

// TempoAt returns the tempo in effect at an absolute tick position.
func (m *TempoMap) TempoAt(tick int64) uint32 {
	i := sort.Search(len(m.segments), func(i int) bool { return m.segments[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	return m.segments[i].tempo
}

// Changes returns the number of tempo segments, including the implicit initial one.
func (m *TempoMap) Changes() int { return len(m.segments) }
