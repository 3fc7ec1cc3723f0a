package proto

import (
	"context"
	"errors"
	"io"
)

// Point to point packet protocol between the emulator and the fan master.
// Every packet is one command byte and three data bytes, followed by an XOR
// checksum and wrapped in SOF/EOF. Framing bytes inside a frame are escaped
// as ESC, b^XOR.

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidFrame     = errors.New("invalid frame")
)

const (
	SOF = 0x7E // Start of Frame
	ESC = 0x7D // Escape character
	XOR = 0x20 // XOR value for escaping
	EOF = 0x7F // End of Frame
)

// frameLen is the unescaped frame body: command, data, checksum.
const frameLen = 5

// Command represents the command byte.
type Command uint8

// Data represents the three data bytes.
type Data [3]uint8

// Packet represents a serial packet with command and data.
type Packet struct {
	Command Command
	Data    Data
}

// Checksum calculates the checksum for a packet.
func (p Packet) Checksum() uint8 {
	crc := uint8(p.Command)
	for _, d := range p.Data {
		crc ^= d
	}
	return crc
}

// AppendFrame appends the escaped frame of p to buf.
func (p Packet) AppendFrame(buf []byte) []byte {
	buf = append(buf, SOF)
	for _, b := range [frameLen]uint8{uint8(p.Command), p.Data[0], p.Data[1], p.Data[2], p.Checksum()} {
		if b == SOF || b == EOF || b == ESC {
			buf = append(buf, ESC, b^XOR)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, EOF)
}

// WritePacket writes the frame of packet with a single call to w.
func WritePacket(ctx context.Context, w io.Writer, packet Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf [2 + 2*frameLen]byte
	_, err := w.Write(packet.AppendFrame(buf[:0]))
	return err
}

// Reader decodes packets from a byte stream.
type Reader struct {
	r   io.ByteReader
	buf [frameLen]uint8
}

// NewReader returns a Reader on r. Readers that are not an io.ByteReader are
// read one byte per call, without read-ahead; wrap them in a bufio.Reader
// when the Reader owns the stream.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &singleByteReader{r: r}
	}
	return &Reader{r: br}
}

// ReadPacket reads a packet from an io.Reader, see Reader.ReadPacket.
func ReadPacket(ctx context.Context, r io.Reader) (Packet, error) {
	return NewReader(r).ReadPacket(ctx)
}

// ReadPacket blocks until a frame is complete. Bytes outside of a frame are
// dropped and a SOF inside a frame restarts it. A frame of the wrong size
// yields ErrInvalidFrame, a corrupted one ErrChecksumMismatch; the stream
// stays usable after both.
func (r *Reader) ReadPacket(ctx context.Context) (Packet, error) {
	started := false
	escaped := false
	n := 0

	for {
		// Check if context is done before reading
		if err := ctx.Err(); err != nil {
			return Packet{}, err
		}

		b, err := r.r.ReadByte()
		if err != nil {
			return Packet{}, err
		}

		switch {
		case !started:
			started = b == SOF
			continue
		case escaped:
			b ^= XOR
			escaped = false
		case b == ESC:
			escaped = true
			continue
		case b == SOF:
			n = 0
			continue
		case b == EOF:
			if n != frameLen {
				return Packet{}, ErrInvalidFrame
			}
			return r.decode()
		}

		if n == frameLen {
			return Packet{}, ErrInvalidFrame
		}
		r.buf[n] = b
		n++
	}
}

func (r *Reader) decode() (Packet, error) {
	pkt := Packet{
		Command: Command(r.buf[0]),
		Data:    Data{r.buf[1], r.buf[2], r.buf[3]},
	}
	if r.buf[4] != pkt.Checksum() {
		return Packet{}, ErrChecksumMismatch
	}
	return pkt, nil
}

type singleByteReader struct {
	r   io.Reader
	buf [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	for {
		n, err := s.r.Read(s.buf[:])
		if n == 1 {
			return s.buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
