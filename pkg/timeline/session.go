package timeline

import (
	"bytes"
	"fmt"
	"os"

	"github.com/james-see/notesampler/pkg/instrument"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

// Option configures a Session.
type Option func(*Session)

// WithResolver sets the instrument table used to annotate events.
func WithResolver(r *instrument.Resolver) Option {
	return func(s *Session) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session decodes one MIDI file. It is parsed once and read-only afterwards;
// sessions share no state, so independent files may be decoded concurrently
// with one session each.
type Session struct {
	data     []byte
	log      *zap.Logger
	resolver *instrument.Resolver

	parsed           bool
	header           Header
	tempo            *TempoMap
	events           []Event
	programs         [NumChannels]uint8
	trackInstruments map[int]uint8
}

// NewSession creates an unparsed session over data.
func NewSession(data []byte, opts ...Option) *Session {
	s := &Session{
		data:     data,
		log:      zap.NewNop(),
		resolver: instrument.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decode creates a session over data and parses it.
func Decode(data []byte, opts ...Option) (*Session, error) {
	s := NewSession(data, opts...)
	if err := s.Parse(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open reads a MIDI file from disk and parses it.
func Open(filename string, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return Decode(data, opts...)
}

// Parse decodes the file. It may be called once; on error the session holds
// no events.
func (s *Session) Parse() error {
	if s.parsed {
		return ErrAlreadyParsed
	}
	s.parsed = true

	h, next, err := readHeader(s.data)
	if err != nil {
		return err
	}
	end, err := frameTracks(s.data, h, next)
	if err != nil {
		return err
	}

	file, err := smf.ReadFrom(bytes.NewReader(s.data[:end]))
	if err != nil {
		return &DecodeError{Kind: ErrTruncatedTrack, Track: -1, Offset: -1, Detail: "reading track events", Err: err}
	}
	if len(file.Tracks) != int(h.Tracks) {
		return trackError(len(file.Tracks), -1, "decoded %d of %d declared tracks", len(file.Tracks), h.Tracks)
	}

	ticked := make([][]tickedMessage, len(file.Tracks))
	var tempos []tempoChange
	for i, track := range file.Tracks {
		c := trackCursor{track: i}
		msgs, changes := c.walk(track)
		ticked[i] = msgs
		tempos = append(tempos, changes...)
	}
	tempoMap := newTempoMap(h.Resolution, tempos)

	// Channel programs follow decode order: track by track, then by offset.
	var state channelState
	perTrack := make([][]Event, len(ticked))
	for i, msgs := range ticked {
		for _, tm := range msgs {
			if ev, ok := state.apply(tm.msg, tempoMap.Seconds(tm.tick)); ok {
				perTrack[i] = append(perTrack[i], ev)
			}
		}
	}

	instruments := make(map[int]uint8)
	if h.Format == 1 {
		for i, track := range file.Tracks {
			if p, ok := firstProgram(track); ok {
				instruments[i] = p
			}
		}
	} else {
		instruments[0] = state.programs[0]
	}

	s.header = h
	s.tempo = tempoMap
	s.events = merge(perTrack)
	s.programs = state.programs
	s.trackInstruments = instruments

	s.log.Debug("decoded midi file",
		zap.Uint16("format", h.Format),
		zap.Uint16("tracks", h.Tracks),
		zap.Uint16("resolution", h.Resolution),
		zap.Int("tempo_segments", tempoMap.Changes()),
		zap.Int("events", len(s.events)),
	)
	return nil
}

// Format returns the SMF format type (0 or 1).
func (s *Session) Format() int { return int(s.header.Format) }

// Resolution returns the file's ticks per quarter note.
func (s *Session) Resolution() uint16 { return s.header.Resolution }

// Tracks returns the number of tracks in the file.
func (s *Session) Tracks() int { return int(s.header.Tracks) }

// TempoMap returns the merged tempo map, or nil before a successful parse.
func (s *Session) TempoMap() *TempoMap { return s.tempo }

// Resolver returns the instrument table the session annotates with.
func (s *Session) Resolver() *instrument.Resolver { return s.resolver }

// Events returns a copy of the decoded, time-ordered events.
func (s *Session) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ChannelPrograms returns the program on each channel at the end of the file.
func (s *Session) ChannelPrograms() map[int]int {
	out := make(map[int]int, NumChannels)
	for ch, p := range s.programs {
		out[ch] = int(p)
	}
	return out
}

// TrackInstruments maps track index to the first program change in that
// track. Tracks without one are absent. Format 0 files report the final
// program of channel 0 for track 0.
func (s *Session) TrackInstruments() map[int]int {
	out := make(map[int]int, len(s.trackInstruments))
	for t, p := range s.trackInstruments {
		out[t] = int(p)
	}
	return out
}

// GroupFor resolves a program against the session's instrument table.
func (s *Session) GroupFor(program int) (string, bool) {
	return s.resolver.Resolve(program)
}

// Duration returns the time of the last event.
func (s *Session) Duration() float64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].Time
}
