// Package frame implements the ASCII command protocol spoken with the
// operator console: `!` device command payload checksum `#`.
//
// The checksum is the sum of every byte between the start marker and the
// checksum digits, modulo 1000, written as three decimal digits.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	StartByte = '!'
	EndByte   = '#'
	// MinLen is the shortest well-formed frame: markers, device, command
	// and three checksum digits.
	MinLen = 7
	// MaxLen bounds a frame on the wire.
	MaxLen = 20
)

// Reply device and command bytes.
const (
	ReplyDevice   = 'M'
	cmdAck        = 'Z'
	cmdInputs     = 'i'
	cmdOutputs    = 'e'
	ackSubcommand = 'O'
)

// AckCode is the status carried by an acknowledgement frame.
type AckCode byte

const (
	AckOK        AckCode = '1'
	AckUnknown   AckCode = '2'
	AckChecksum  AckCode = '3'
	AckStructure AckCode = '4'
)

func (c AckCode) String() string {
	switch c {
	case AckOK:
		return "ok"
	case AckUnknown:
		return "unknown-command"
	case AckChecksum:
		return "checksum"
	case AckStructure:
		return "structure"
	default:
		return fmt.Sprintf("AckCode(%q)", byte(c))
	}
}

var (
	// ErrStructure is returned for frames with bad markers, length or digits.
	ErrStructure = errors.New("frame: malformed frame")
	// ErrChecksum is returned when the carried checksum does not match.
	ErrChecksum = errors.New("frame: checksum mismatch")
)

// Frame is a parsed command frame.
type Frame struct {
	Device   byte
	Command  byte
	Payload  []byte
	Checksum int
}

// Checksum sums body modulo 1000. body is everything between the start
// marker and the checksum digits.
func Checksum(body []byte) int {
	sum := 0
	for _, b := range body {
		sum += int(b)
	}
	return sum % 1000
}

// Encode wraps body into a complete frame with its checksum.
func Encode(body []byte) []byte {
	out := make([]byte, 0, len(body)+5)
	out = append(out, StartByte)
	out = append(out, body...)
	c := Checksum(body)
	out = append(out, byte('0'+c/100), byte('0'+(c/10)%10), byte('0'+c%10), EndByte)
	return out
}

// Ack builds the acknowledgement frame for code.
func Ack(code AckCode) []byte {
	return Encode([]byte{ReplyDevice, cmdAck, ackSubcommand, byte(code)})
}

// Parse validates raw and splits it into its fields. Surrounding whitespace
// is ignored.
func Parse(raw []byte) (Frame, error) {
	raw = bytes.TrimSpace(raw)
	n := len(raw)
	if n < MinLen || n > MaxLen || raw[0] != StartByte || raw[n-1] != EndByte {
		return Frame{}, fmt.Errorf("%w: %q", ErrStructure, raw)
	}
	digits := raw[n-4 : n-1]
	want := 0
	for _, d := range digits {
		if d < '0' || d > '9' {
			return Frame{}, fmt.Errorf("%w: checksum digits %q", ErrStructure, digits)
		}
		want = want*10 + int(d-'0')
	}
	body := raw[1 : n-4]
	if got := Checksum(body); got != want {
		return Frame{}, fmt.Errorf("%w: carried %03d, computed %03d", ErrChecksum, want, got)
	}
	return Frame{
		Device:   body[0],
		Command:  body[1],
		Payload:  append([]byte(nil), body[2:]...),
		Checksum: want,
	}, nil
}
