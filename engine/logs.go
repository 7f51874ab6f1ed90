package engine

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Stream types used in multiplexed log frames.
const (
	StreamStdout byte = 1
	StreamStderr byte = 2
)

const frameHeaderLen = 8

// DemuxLogs decodes a frame-multiplexed log stream. Each frame is an 8-byte
// header (stream type, three reserved bytes, big-endian payload length)
// followed by the payload. A "[stdout] " or "[stderr] " marker, preceded by a
// newline, is written whenever the stream type changes.
func DemuxLogs(data []byte) (string, error) {
	var (
		b       strings.Builder
		current byte
	)
	for offset := 0; offset < len(data); {
		if len(data)-offset < frameHeaderLen {
			return "", fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncatedFrame, len(data)-offset, offset)
		}
		header := data[offset : offset+frameHeaderLen]
		stream := header[0]
		size := int(binary.BigEndian.Uint32(header[4:8]))
		offset += frameHeaderLen

		var marker string
		switch stream {
		case StreamStdout:
			marker = "[stdout] "
		case StreamStderr:
			marker = "[stderr] "
		default:
			return "", fmt.Errorf("%w: %d at offset %d", ErrUnknownStream, stream, offset-frameHeaderLen)
		}

		if size > len(data)-offset {
			return "", fmt.Errorf("%w: want %d bytes, have %d", ErrTruncatedFrame, size, len(data)-offset)
		}
		if stream != current {
			b.WriteByte('\n')
			b.WriteString(marker)
			current = stream
		}
		b.Write(data[offset : offset+size])
		offset += size
	}
	return b.String(), nil
}

// EncodeFrame builds a single log frame. It mirrors the engine's framing and is
// used by fakes and tests.
func EncodeFrame(stream byte, payload []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(payload))
	frame[0] = stream
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[frameHeaderLen:], payload)
	return frame
}
