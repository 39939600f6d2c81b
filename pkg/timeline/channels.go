package timeline

// channelState tracks the active program per channel.
type channelState struct {
	programs [NumChannels]uint8
}

// apply updates the table for m and returns the event it produces, if any.
func (s *channelState) apply(m message, seconds float64) (Event, bool) {
	ch := m.channel & 0x0F
	switch m.kind {
	case msgNoteOn:
		return Event{Time: seconds, Kind: NoteOn, Channel: ch, Note: m.key, Velocity: m.velocity, Program: s.programs[ch]}, true
	case msgNoteOff:
		return Event{Time: seconds, Kind: NoteOff, Channel: ch, Note: m.key, Velocity: m.velocity, Program: s.programs[ch]}, true
	case msgProgramChange:
		s.programs[ch] = m.program
		return Event{Time: seconds, Kind: ProgramChange, Channel: ch, Program: m.program}, true
	}
	return Event{}, false
}
