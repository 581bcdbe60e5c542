// Package codec frames monitor payloads on the websocket.
//
// Every binary frame starts with a four byte header: payload type, flags
// and a big-endian payload length.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the length of the frame header.
const HeaderSize = 4

// MaxPayload is the largest payload a frame can carry.
const MaxPayload = math.MaxUint16

const (
	payloadTypeAudio = 0
	payloadTypeCmd   = 1
)

// Flags annotate a frame.
type Flags uint8

const (
	// FlagFinal marks the last audio frame of a stream.
	FlagFinal Flags = 1 << iota
	// FlagPadded marks an audio frame padded with trailing silence.
	FlagPadded
)

// PayloadKind describes the decoded payload category.
type PayloadKind int

const (
	// PayloadKindAudio indicates an opus packet.
	PayloadKindAudio PayloadKind = iota
	// PayloadKindCommand indicates JSON command bytes.
	PayloadKindCommand
)

func (k PayloadKind) String() string {
	if k == PayloadKindCommand {
		return "command"
	}
	return "audio"
}

var (
	// ErrShortFrame is returned for frames smaller than the header.
	ErrShortFrame = errors.New("monitor frame too short")
	// ErrPayloadSize is returned when the header length overruns the frame.
	ErrPayloadSize = errors.New("monitor frame invalid payload size")
	// ErrPayloadType is returned for an unknown payload type.
	ErrPayloadType = errors.New("monitor frame unsupported payload type")
	// ErrPayloadTooLarge is returned when packing more than MaxPayload bytes.
	ErrPayloadTooLarge = errors.New("monitor payload too large")
)

// Frame is one decoded frame. Payload aliases the input buffer.
type Frame struct {
	Kind    PayloadKind
	Flags   Flags
	Payload []byte
}

// Decode parses a binary frame.
func Decode(frame []byte) (Frame, error) {
	if len(frame) < HeaderSize {
		return Frame{}, ErrShortFrame
	}
	payloadSize := int(binary.BigEndian.Uint16(frame[2:4]))
	if payloadSize > len(frame)-HeaderSize {
		return Frame{}, ErrPayloadSize
	}
	out := Frame{
		Flags:   Flags(frame[1]),
		Payload: frame[HeaderSize : HeaderSize+payloadSize],
	}
	switch frame[0] {
	case payloadTypeAudio:
		out.Kind = PayloadKindAudio
	case payloadTypeCmd:
		out.Kind = PayloadKindCommand
	default:
		return Frame{}, fmt.Errorf("%w: %d", ErrPayloadType, frame[0])
	}
	return out, nil
}

// AppendAudio appends an audio frame carrying packet to dst.
func AppendAudio(dst []byte, flags Flags, packet []byte) ([]byte, error) {
	return appendFrame(dst, payloadTypeAudio, flags, packet)
}

// AppendCommand appends a command frame carrying a JSON payload to dst.
func AppendCommand(dst []byte, payload []byte) ([]byte, error) {
	return appendFrame(dst, payloadTypeCmd, 0, payload)
}

func appendFrame(dst []byte, msgType byte, flags Flags, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	dst = append(dst, msgType, byte(flags), 0, 0)
	binary.BigEndian.PutUint16(dst[len(dst)-2:], uint16(len(payload)))
	return append(dst, payload...), nil
}
