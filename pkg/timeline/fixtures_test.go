package timeline

import "encoding/binary"

// vlq encodes v as a variable-length quantity.
func vlq(v uint32) []byte {
	out := []byte{byte(v & 0x7F)}
	for v >>= 7; v > 0; v >>= 7 {
		out = append([]byte{byte(v&0x7F) | 0x80}, out...)
	}
	return out
}

// trackBuilder assembles the body of an MTrk chunk.
type trackBuilder struct {
	body []byte
}

func newTrack() *trackBuilder { return &trackBuilder{} }

func (b *trackBuilder) event(delta uint32, msg ...byte) *trackBuilder {
	b.body = append(b.body, vlq(delta)...)
	b.body = append(b.body, msg...)
	return b
}

func (b *trackBuilder) noteOn(delta uint32, ch, key, vel byte) *trackBuilder {
	return b.event(delta, 0x90|ch, key, vel)
}

func (b *trackBuilder) noteOff(delta uint32, ch, key, vel byte) *trackBuilder {
	return b.event(delta, 0x80|ch, key, vel)
}

func (b *trackBuilder) program(delta uint32, ch, program byte) *trackBuilder {
	return b.event(delta, 0xC0|ch, program)
}

func (b *trackBuilder) tempo(delta, microsPerQuarter uint32) *trackBuilder {
	return b.event(delta, 0xFF, 0x51, 0x03,
		byte(microsPerQuarter>>16), byte(microsPerQuarter>>8), byte(microsPerQuarter))
}

func (b *trackBuilder) name(delta uint32, name string) *trackBuilder {
	msg := append([]byte{0xFF, 0x03, byte(len(name))}, name...)
	return b.event(delta, msg...)
}

// chunk closes the track with an end-of-track event and wraps it in MTrk.
func (b *trackBuilder) chunk() []byte {
	body := append(append([]byte{}, b.body...), 0x00, 0xFF, 0x2F, 0x00)
	return rawChunk("MTrk", body)
}

func rawChunk(id string, body []byte) []byte {
	out := make([]byte, 8, 8+len(body))
	copy(out, id)
	binary.BigEndian.PutUint32(out[4:], uint32(len(body)))
	return append(out, body...)
}

func headerChunk(format, tracks, division uint16) []byte {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body[0:], format)
	binary.BigEndian.PutUint16(body[2:], tracks)
	binary.BigEndian.PutUint16(body[4:], division)
	return rawChunk("MThd", body)
}

// smfFile builds a complete file declaring as many tracks as are given.
func smfFile(format, division uint16, tracks ...[]byte) []byte {
	out := headerChunk(format, uint16(len(tracks)), division)
	for _, t := range tracks {
		out = append(out, t...)
	}
	return out
}
