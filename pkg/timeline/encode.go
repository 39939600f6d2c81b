package timeline

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultResolution is used by Encode when no resolution is given.
const DefaultResolution uint16 = 480

// Encode writes time-ordered events as a format 0 file at DefaultTempo.
// Event times are quantized to the nearest tick.
func Encode(events []Event, resolution uint16) ([]byte, error) {
	if resolution == 0 {
		resolution = DefaultResolution
	}
	if resolution&smpteDivision != 0 {
		return nil, fmt.Errorf("resolution %d out of range", resolution)
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)

	tempo := DefaultTempo
	var track smf.Track
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(tempo >> 16),
		byte(tempo >> 8),
		byte(tempo),
	}))

	ticksPerSecond := float64(resolution) * 1e6 / float64(DefaultTempo)
	var currentTick int64
	for i, ev := range events {
		tick := int64(math.Round(ev.Time * ticksPerSecond))
		if tick < currentTick {
			return nil, fmt.Errorf("event %d at %.3fs is out of order", i, ev.Time)
		}
		ch := ev.Channel & 0x0F

		var msg []byte
		switch ev.Kind {
		case NoteOn:
			msg = midi.NoteOn(ch, ev.Note&0x7F, ev.Velocity&0x7F)
		case NoteOff:
			msg = midi.Message([]byte{0x80 | ch, ev.Note & 0x7F, ev.Velocity & 0x7F})
		case ProgramChange:
			msg = midi.ProgramChange(ch, ev.Program&0x7F)
		default:
			return nil, fmt.Errorf("event %d has unknown kind %d", i, ev.Kind)
		}
		track.Add(uint32(tick-currentTick), msg)
		currentTick = tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten re-encodes a parsed session as a single-track file at DefaultTempo,
// keeping the session's resolution.
func (s *Session) Flatten() ([]byte, error) {
	if !s.parsed || s.tempo == nil {
		return nil, errors.New("session not parsed")
	}
	return Encode(s.events, s.header.Resolution)
}

// WriteFile flattens the session into filename.
func (s *Session) WriteFile(filename string) error {
	data, err := s.Flatten()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
