package timeline

import (
	"math"

	"github.com/james-see/notesampler/pkg/instrument"
)

// Record is the serialized form of an Event with its sound group resolved.
// Fields that do not apply to the event kind are null.
type Record struct {
	Time     float64 `json:"time"`
	Type     string  `json:"type"`
	Channel  int     `json:"channel"`
	Note     *int    `json:"note"`
	Velocity *int    `json:"velocity"`
	Program  *int    `json:"program"`
	Group    *string `json:"group"`
}

// Summary is the serialized result of a parse.
type Summary struct {
	Type             int         `json:"type"`
	Resolution       int         `json:"resolution"`
	Tracks           int         `json:"tracks"`
	Duration         float64     `json:"duration"`
	Events           []Record    `json:"events"`
	ChannelPrograms  map[int]int `json:"channel_programs"`
	TrackInstruments map[int]int `json:"track_instruments"`
}

// Annotate converts events to records, resolving each program to a group.
func Annotate(events []Event, r *instrument.Resolver) []Record {
	out := make([]Record, 0, len(events))
	for _, ev := range events {
		rec := Record{
			Time:    roundMillis(ev.Time),
			Type:    ev.Kind.String(),
			Channel: int(ev.Channel),
			Program: intPtr(int(ev.Program)),
		}
		if ev.IsNote() {
			rec.Note = intPtr(int(ev.Note))
			rec.Velocity = intPtr(int(ev.Velocity))
		}
		if group, ok := r.Resolve(int(ev.Program)); ok {
			rec.Group = &group
		}
		out = append(out, rec)
	}
	return out
}

// Records returns the session's events annotated with its instrument table.
func (s *Session) Records() []Record {
	return Annotate(s.events, s.resolver)
}

// Summary returns everything a client needs about the decoded file.
func (s *Session) Summary() Summary {
	return Summary{
		Type:             s.Format(),
		Resolution:       int(s.Resolution()),
		Tracks:           s.Tracks(),
		Duration:         roundMillis(s.Duration()),
		Events:           s.Records(),
		ChannelPrograms:  s.ChannelPrograms(),
		TrackInstruments: s.TrackInstruments(),
	}
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

func intPtr(v int) *int { return &v }
