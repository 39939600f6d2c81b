package timeline

import (
	"math"
	"testing"
)

func TestTickClock(t *testing.T) {
	c := NewTickClock(480)
	if c.Tempo() != DefaultTempo {
		t.Fatalf("Tempo() = %d, want %d", c.Tempo(), DefaultTempo)
	}
	if got := c.BPM(); got != 120 {
		t.Errorf("BPM() = %v, want 120", got)
	}

	tests := []struct {
		tempo uint32
		ticks int64
		want  float64
	}{
		{500000, 480, 0.5},
		{500000, 960, 1.0},
		{500000, 0, 0},
		{1000000, 480, 1.0},
		{250000, 120, 0.0625},
	}
	for _, tt := range tests {
		c.SetTempo(tt.tempo)
		if got := c.Seconds(tt.ticks); got != tt.want {
			t.Errorf("Seconds(%d) at tempo %d = %v, want %v", tt.ticks, tt.tempo, got, tt.want)
		}
	}
}

func TestTempoMapPiecewise(t *testing.T) {
	m := newTempoMap(480, []tempoChange{
		{tick: 960, tempo: 1000000},
		{tick: 480, tempo: 250000},
	})

	if m.Changes() != 3 {
		t.Fatalf("Changes() = %d, want 3", m.Changes())
	}

	tests := []struct {
		tick int64
		want float64
	}{
		{0, 0},
		{240, 0.25},
		{480, 0.5},
		{720, 0.625},
		{960, 0.75},
		{1440, 1.75},
	}
	for _, tt := range tests {
		if got := m.Seconds(tt.tick); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Seconds(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}

	if got := m.TempoAt(500); got != 250000 {
		t.Errorf("TempoAt(500) = %d, want 250000", got)
	}
	if got := m.TempoAt(0); got != DefaultTempo {
		t.Errorf("TempoAt(0) = %d, want %d", got, DefaultTempo)
	}
}

func TestTempoMapLastChangeAtTickWins(t *testing.T) {
	m := newTempoMap(480, []tempoChange{
		{tick: 0, tempo: 600000},
		{tick: 0, tempo: 1000000},
		{tick: 480, tempo: 250000},
		{tick: 480, tempo: 500000},
	})

	if m.Changes() != 2 {
		t.Fatalf("Changes() = %d, want 2", m.Changes())
	}
	if got := m.Seconds(480); got != 1.0 {
		t.Errorf("Seconds(480) = %v, want 1.0", got)
	}
	if got := m.Seconds(960); got != 1.5 {
		t.Errorf("Seconds(960) = %v, want 1.5", got)
	}
}
