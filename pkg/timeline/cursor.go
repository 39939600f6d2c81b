package timeline

import "gitlab.com/gomidi/midi/v2/smf"

type messageKind uint8

const (
	msgOther messageKind = iota
	msgNoteOn
	msgNoteOff
	msgProgramChange
	msgTempo
	msgMeta
)

// message is a classified wire message.
type message struct {
	kind     messageKind
	channel  uint8
	key      uint8
	velocity uint8
	program  uint8
	tempo    uint32
}

// classify maps a raw track message onto the closed set of kinds the
// decoder acts on.
func classify(msg smf.Message) message {
	if len(msg) == 0 {
		return message{kind: msgOther}
	}

	// Meta: FF type len data...; tempo is FF 51 03 tt tt tt
	if msg[0] == 0xFF {
		if len(msg) >= 6 && msg[1] == 0x51 && msg[2] == 0x03 {
			tempo := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
			if tempo > 0 {
				return message{kind: msgTempo, tempo: tempo}
			}
		}
		return message{kind: msgMeta}
	}

	// Channel voice messages are matched on the raw status byte so that a
	// note-on with velocity 0 stays a note-on.
	status := msg[0]
	ch := status & 0x0F
	var program uint8
	switch {
	case status&0xF0 == 0x90 && len(msg) >= 3:
		return message{kind: msgNoteOn, channel: ch, key: msg[1], velocity: msg[2]}
	case status&0xF0 == 0x80 && len(msg) >= 3:
		return message{kind: msgNoteOff, channel: ch, key: msg[1], velocity: msg[2]}
	case msg.GetProgramChange(&ch, &program):
		return message{kind: msgProgramChange, channel: ch, program: program}
	}
	return message{kind: msgOther}
}

// tickedMessage is a message positioned at an absolute tick of its track.
type tickedMessage struct {
	tick  int64
	track int
	msg   message
}

// trackCursor walks one track, accumulating delta times.
type trackCursor struct {
	track    int
	absTicks int64
}

// walk returns the track's note and program messages with absolute ticks.
// Tempo changes are reported separately. Other meta, sysex and channel
// messages are dropped.
func (c *trackCursor) walk(events smf.Track) ([]tickedMessage, []tempoChange) {
	var out []tickedMessage
	var tempos []tempoChange
	for _, ev := range events {
		c.absTicks += int64(ev.Delta)
		m := classify(ev.Message)
		switch m.kind {
		case msgTempo:
			tempos = append(tempos, tempoChange{tick: c.absTicks, tempo: m.tempo})
		case msgMeta, msgOther:
		default:
			out = append(out, tickedMessage{tick: c.absTicks, track: c.track, msg: m})
		}
	}
	return out, tempos
}

// firstProgram returns the first program change in a track.
func firstProgram(events smf.Track) (uint8, bool) {
	for _, ev := range events {
		if m := classify(ev.Message); m.kind == msgProgramChange {
			return m.program, true
		}
	}
	return 0, false
}
