// Package protocol implements the relay wire format.
//
// A stream is a sequence of frames. Each frame is the uvarint length of a record
// followed by the record itself. A record is protobuf wire-format with the fields:
//
//	1 version   varint
//	2 kind      varint
//	3 sender    string
//	4 content   string
//	5 timestamp string
//
// Unknown fields are skipped so newer peers can add fields without breaking older ones.
package protocol

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the record version written by this codec.
const Version = 1

// DefaultMaxFrameSize bounds a single record on the wire.
const DefaultMaxFrameSize = 64 * 1024

const (
	fieldVersion   protowire.Number = 1
	fieldKind      protowire.Number = 2
	fieldSender    protowire.Number = 3
	fieldContent   protowire.Number = 4
	fieldTimestamp protowire.Number = 5
)

// Marshal encodes a message as a record, without framing.
func Marshal(msg domain.ChatMessage) []byte {
	b := make([]byte, 0, 16+len(msg.Sender)+len(msg.Content)+len(msg.Timestamp))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Kind))
	b = appendString(b, fieldSender, msg.Sender)
	b = appendString(b, fieldContent, msg.Content)
	b = appendString(b, fieldTimestamp, msg.Timestamp)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(b []byte) (domain.ChatMessage, error) {
	var (
		msg     domain.ChatMessage
		version uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == fieldKind && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			msg.Kind = domain.Kind(v)
		case num == fieldSender && typ == protowire.BytesType:
			msg.Sender, n = protowire.ConsumeString(b)
		case num == fieldContent && typ == protowire.BytesType:
			msg.Content, n = protowire.ConsumeString(b)
		case num == fieldTimestamp && typ == protowire.BytesType:
			msg.Timestamp, n = protowire.ConsumeString(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return domain.ChatMessage{}, fmt.Errorf("%w: field %d: %v", errors.ErrMalformedRecord, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if version == 0 || version > Version {
		return domain.ChatMessage{}, fmt.Errorf("%w: %d", errors.ErrUnsupportedVersion, version)
	}
	return msg, nil
}

// AppendFrame appends the framed record of msg to b.
func AppendFrame(b []byte, msg domain.ChatMessage) []byte {
	record := Marshal(msg)
	b = protowire.AppendVarint(b, uint64(len(record)))
	return append(b, record...)
}

// Writer writes framed messages. It is not safe for concurrent use.
type Writer struct {
	w   io.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage writes one frame with a single Write call.
func (w *Writer) WriteMessage(msg domain.ChatMessage) error {
	w.buf = AppendFrame(w.buf[:0], msg)
	_, err := w.w.Write(w.buf)
	return err
}

// Reader reads framed messages. It is not safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	maxSize uint64
}

// NewReader creates a Reader rejecting frames larger than maxSize bytes.
// A non-positive maxSize selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: uint64(maxSize)}
}

// ReadMessage blocks until a full frame is available.
// io.EOF is returned only when the stream ends on a frame boundary.
func (r *Reader) ReadMessage() (domain.ChatMessage, error) {
	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if size > r.maxSize {
		return domain.ChatMessage{}, fmt.Errorf("%w: %d > %d", errors.ErrFrameTooLarge, size, r.maxSize)
	}

	record := make([]byte, size)
	if _, err := io.ReadFull(r.r, record); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return domain.ChatMessage{}, err
	}
	return Unmarshal(record)
}
