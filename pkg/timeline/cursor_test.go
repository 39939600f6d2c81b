package timeline

import (
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"
)

func TestWalkKeepsOnlyTimelineMessages(t *testing.T) {
	track := smf.Track{
		{Delta: 0, Message: smf.Message{0xF0, 0x03, 0x7E, 0x01, 0xF7}},
		{Delta: 10, Message: smf.Message{0xB0, 0x07, 0x64}},
		{Delta: 0, Message: smf.Message{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}},
		{Delta: 5, Message: smf.Message{0xFF, 0x03, 0x01, 'x'}},
		{Delta: 5, Message: smf.Message{0xC1, 0x18}},
		{Delta: 0, Message: smf.Message{0x91, 0x3C, 0x00}},
		{Delta: 0, Message: smf.Message{0xE1, 0x00, 0x40}},
	}

	c := trackCursor{track: 2}
	msgs, tempos := c.walk(track)

	if len(tempos) != 1 || tempos[0].tick != 10 || tempos[0].tempo != DefaultTempo {
		t.Errorf("tempos = %+v, want one change to %d at tick 10", tempos, DefaultTempo)
	}
	if len(msgs) != 2 {
		t.Fatalf("walk() kept %d messages, want 2: %+v", len(msgs), msgs)
	}
	if m := msgs[0]; m.msg.kind != msgProgramChange || m.tick != 20 || m.track != 2 || m.msg.program != 0x18 {
		t.Errorf("first message = %+v, want program change 24 at tick 20", m)
	}
	if m := msgs[1]; m.msg.kind != msgNoteOn || m.msg.velocity != 0 || m.msg.channel != 1 {
		t.Errorf("second message = %+v, want velocity-0 note-on on channel 1", m)
	}
	if c.absTicks != 20 {
		t.Errorf("absTicks = %d, want 20", c.absTicks)
	}
}
