package timeline

import (
	"encoding/binary"
	"path/filepath"
	"strings"
)

// SMF chunk layout
const (
	headerChunkID  = "MThd"
	trackChunkID   = "MTrk"
	chunkPrefixLen = 8
	headerDataLen  = 6
	smpteDivision  = 0x8000
)

// Header is the decoded MThd chunk.
type Header struct {
	Format     uint16
	Tracks     uint16
	Resolution uint16
}

// IsMIDIFile reports whether a filename carries a Standard MIDI File extension.
func IsMIDIFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi", ".smf":
		return true
	}
	return false
}

// Sniff reports whether data starts with the SMF header signature.
func Sniff(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == headerChunkID
}

// readHeader validates the MThd chunk and returns it together with the
// offset of the first chunk after it.
func readHeader(data []byte) (Header, int, error) {
	if !Sniff(data) {
		return Header{}, 0, headerError(ErrMalformedHeader, 0, "missing %q signature", headerChunkID)
	}
	if len(data) < chunkPrefixLen+headerDataLen {
		return Header{}, 0, headerError(ErrMalformedHeader, len(data), "header needs %d bytes, got %d", chunkPrefixLen+headerDataLen, len(data))
	}

	length := binary.BigEndian.Uint32(data[4:8])
	if length < headerDataLen {
		return Header{}, 0, headerError(ErrMalformedHeader, 4, "header length %d, want at least %d", length, headerDataLen)
	}
	next := chunkPrefixLen + int(length)
	if next > len(data) {
		return Header{}, 0, headerError(ErrMalformedHeader, 4, "header length %d exceeds file size", length)
	}

	h := Header{
		Format: binary.BigEndian.Uint16(data[8:10]),
		Tracks: binary.BigEndian.Uint16(data[10:12]),
	}
	division := binary.BigEndian.Uint16(data[12:14])

	if h.Format > 1 {
		return Header{}, 0, headerError(ErrUnsupportedFormat, 8, "format type %d", h.Format)
	}
	if division&smpteDivision != 0 {
		return Header{}, 0, headerError(ErrUnsupportedFormat, 12, "SMPTE time division 0x%04x", division)
	}
	if division == 0 {
		return Header{}, 0, headerError(ErrInvalidResolution, 12, "resolution must be positive")
	}
	h.Resolution = division

	if h.Tracks == 0 {
		return Header{}, 0, headerError(ErrMalformedHeader, 10, "no tracks declared")
	}
	if h.Format == 0 && h.Tracks != 1 {
		return Header{}, 0, headerError(ErrMalformedHeader, 10, "format 0 declares %d tracks", h.Tracks)
	}
	return h, next, nil
}

// frameTracks walks the chunks following the header and checks that every
// declared track chunk is fully present. It returns the length of the
// validated prefix of data; anything after it is ignored.
func frameTracks(data []byte, h Header, offset int) (int, error) {
	track := 0
	for track < int(h.Tracks) {
		if offset+chunkPrefixLen > len(data) {
			return 0, trackError(track, offset, "file ends before chunk header")
		}
		id := string(data[offset : offset+4])
		length := int(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
		end := offset + chunkPrefixLen + length
		if end > len(data) || end < offset {
			return 0, trackError(track, offset, "chunk declares %d bytes, %d available", length, len(data)-offset-chunkPrefixLen)
		}
		if id == trackChunkID {
			if err := scanTrack(data[:end], track, offset+chunkPrefixLen); err != nil {
				return 0, err
			}
			track++
		}
		offset = end
	}
	return offset, nil
}

// scanTrack checks that the track body data[start:] holds only complete
// events: every delta time, status and data byte a message needs must lie
// inside the chunk. It reports the offset of the event that is cut short.
func scanTrack(data []byte, track, start int) error {
	var running byte
	pos := start
	for pos < len(data) {
		eventAt := pos
		if _, n, ok := readVLQ(data[pos:]); ok {
			pos += n
		} else {
			return trackError(track, eventAt, "delta time runs past end of chunk")
		}
		if pos >= len(data) {
			return trackError(track, eventAt, "chunk ends after delta time")
		}

		switch b := data[pos]; {
		case b == 0xFF:
			// meta: FF type len data
			if pos+2 > len(data) {
				return trackError(track, eventAt, "meta event cut short")
			}
			length, n, ok := readVLQ(data[pos+2:])
			if !ok || pos+2+n+int(length) > len(data) {
				return trackError(track, eventAt, "meta event cut short")
			}
			pos += 2 + n + int(length)
		case b == 0xF0 || b == 0xF7:
			running = 0
			length, n, ok := readVLQ(data[pos+1:])
			if !ok || pos+1+n+int(length) > len(data) {
				return trackError(track, eventAt, "sysex event cut short")
			}
			pos += 1 + n + int(length)
		case b&0x80 != 0:
			running = b
			pos++
			if pos+dataLen(b) > len(data) {
				return trackError(track, eventAt, "status 0x%02X needs %d data bytes", b, dataLen(b))
			}
			pos += dataLen(b)
		default:
			// Running status; a data byte without one is left to the
			// event reader to reject.
			if running == 0 {
				return nil
			}
			if pos+dataLen(running) > len(data) {
				return trackError(track, eventAt, "status 0x%02X needs %d data bytes", running, dataLen(running))
			}
			pos += dataLen(running)
		}
	}
	return nil
}

// readVLQ decodes a variable-length quantity of at most four bytes.
func readVLQ(data []byte) (value uint32, n int, ok bool) {
	for n < len(data) && n < 4 {
		b := data[n]
		value = value<<7 | uint32(b&0x7F)
		n++
		if b&0x80 == 0 {
			return value, n, true
		}
	}
	return 0, n, false
}

// dataLen returns how many data bytes follow a status byte.
func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	case 0xF0:
		switch status {
		case 0xF1, 0xF3:
			return 1
		case 0xF2:
			return 2
		}
		return 0
	}
	return 2
}
