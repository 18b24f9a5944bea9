package wsproto

import (
	"encoding/binary"
	"io"
)

// FrameWriter encodes frames for a server→client stream. Per RFC 6455
// §5.1, server frames are never masked, so unlike FrameReader this type
// has no masking-key concerns on the write side.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a FrameWriter writing to w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes and writes a single unmasked frame, using the
// shortest length encoding the payload size allows.
func (fw *FrameWriter) WriteFrame(frame *Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}

	payloadLen := len(frame.Payload)
	headerSize := 2
	switch {
	case payloadLen > 65535:
		headerSize += 8
	case payloadLen > 125:
		headerSize += 2
	}

	buf := make([]byte, headerSize+payloadLen)
	buf[0] = byte(frame.Opcode) & 0x0F
	if frame.Fin {
		buf[0] |= 0x80
	}

	pos := 1
	switch {
	case payloadLen <= 125:
		buf[pos] = byte(payloadLen)
		pos++
	case payloadLen <= 65535:
		buf[pos] = 126
		pos++
		binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(payloadLen))
		pos += 2
	default:
		buf[pos] = 127
		pos++
		binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(payloadLen))
		pos += 8
	}

	copy(buf[pos:], frame.Payload)

	_, err := fw.w.Write(buf)
	return err
}

// WriteText writes a FIN text frame.
func (fw *FrameWriter) WriteText(data []byte) error {
	return fw.WriteFrame(&Frame{Fin: true, Opcode: OpcodeText, Payload: data})
}

// WriteBinary writes a FIN binary frame.
func (fw *FrameWriter) WriteBinary(data []byte) error {
	return fw.WriteFrame(&Frame{Fin: true, Opcode: OpcodeBinary, Payload: data})
}

// WriteClose writes a close frame carrying the given code and UTF-8
// reason, per RFC 6455 §5.5.1.
func (fw *FrameWriter) WriteClose(code uint16, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], code)
	copy(payload[2:], reason)
	return fw.WriteFrame(&Frame{Fin: true, Opcode: OpcodeClose, Payload: payload})
}

// WritePing writes a ping frame with an optional payload (≤125 bytes).
func (fw *FrameWriter) WritePing(payload []byte) error {
	if len(payload) > MaxControlPayloadSize {
		return &FrameError{Err: ErrControlFrameTooLong, Opcode: OpcodePing}
	}
	return fw.WriteFrame(&Frame{Fin: true, Opcode: OpcodePing, Payload: payload})
}

// WritePong writes a pong frame echoing the given payload.
func (fw *FrameWriter) WritePong(payload []byte) error {
	if len(payload) > MaxControlPayloadSize {
		return &FrameError{Err: ErrControlFrameTooLong, Opcode: OpcodePong}
	}
	return fw.WriteFrame(&Frame{Fin: true, Opcode: OpcodePong, Payload: payload})
}

// DecodeClosePayload splits a close frame's payload into its numeric
// code and UTF-8 reason. A payload shorter than 2 bytes (or absent)
// yields code 0; callers treat that as "absent" and default to 1000
// themselves.
func DecodeClosePayload(payload []byte) (code uint16, reason string) {
	if len(payload) < 2 {
		return 0, ""
	}
	return binary.BigEndian.Uint16(payload[:2]), string(payload[2:])
}
