// Package timeline decodes Standard MIDI Files into a single time-ordered
// stream of note and program events stamped with the instrument active on
// their channel.
package timeline

// Kind is the type of a decoded event.
type Kind uint8

const (
	NoteOn Kind = iota + 1
	NoteOff
	ProgramChange
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case ProgramChange:
		return "program_change"
	default:
		return "unknown"
	}
}

// NumChannels is the number of MIDI channels.
const NumChannels = 16

// Event is one decoded musical or control occurrence.
//
// For notes, Program is the channel's active program when the note was
// decoded. For program changes it is the newly selected program, and Note
// and Velocity are zero.
type Event struct {
	Time     float64 // seconds since the start of the file
	Kind     Kind
	Channel  uint8
	Note     uint8
	Velocity uint8
	Program  uint8
}

// IsNote reports whether the event is a NoteOn or NoteOff.
func (e Event) IsNote() bool {
	return e.Kind == NoteOn || e.Kind == NoteOff
}
