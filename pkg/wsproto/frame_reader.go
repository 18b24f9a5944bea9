package wsproto

import (
	"encoding/binary"
	"io"
)

// FrameReader decodes RFC 6455 frames from a byte stream. It is built on
// top of a plain io.Reader (callers typically hand it a *bufio.Reader so
// that handshake bytes already buffered are not lost) and blocks until a
// full frame has arrived or the underlying read fails. There is no
// separate NeedMore state, since a blocking reader already provides that
// behavior for free.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader creates a FrameReader reading from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads and decodes exactly one frame. A masked frame is
// unmasked in place. An unmasked frame is a protocol violation per RFC
// 6455 §5.1 (only server→client frames may be unmasked) and is reported
// as ErrUnmaskedFrame; callers map that to WebSocket close code 1002.
func (fr *FrameReader) ReadFrame() (*Frame, error) {
	var header [2]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return nil, err
	}

	frame := &Frame{}
	frame.Fin = header[0]&0x80 != 0
	frame.RSV1 = header[0]&0x40 != 0
	frame.RSV2 = header[0]&0x20 != 0
	frame.RSV3 = header[0]&0x10 != 0
	frame.Opcode = Opcode(header[0] & 0x0F)

	frame.Masked = header[1]&0x80 != 0
	payloadLen := uint64(header[1] & 0x7F)

	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(fr.r, ext[:]); err != nil {
			return nil, err
		}
		payloadLen = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(fr.r, ext[:]); err != nil {
			return nil, err
		}
		payloadLen = binary.BigEndian.Uint64(ext[:])
	}

	if payloadLen > MaxFramePayloadSize {
		return nil, &FrameError{Err: ErrFrameTooLarge, Opcode: frame.Opcode}
	}

	if !frame.Masked {
		return nil, &FrameError{Err: ErrUnmaskedFrame, Opcode: frame.Opcode}
	}
	if _, err := io.ReadFull(fr.r, frame.Mask[:]); err != nil {
		return nil, err
	}

	if payloadLen > 0 {
		frame.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(fr.r, frame.Payload); err != nil {
			return nil, err
		}
		frame.unmask()
	}

	if err := frame.Validate(); err != nil {
		return nil, err
	}

	return frame, nil
}

// unmask XORs the payload with the masking key, per RFC 6455 §5.3.
func (f *Frame) unmask() {
	for i := range f.Payload {
		f.Payload[i] ^= f.Mask[i%4]
	}
}
