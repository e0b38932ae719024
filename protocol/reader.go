package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/raniellyferreira/redistmpl/reply"
)

const (
	// CRLF is the Redis protocol line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size for bulk strings (512MB, the server limit)
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum size for arrays
	maxArraySize = 1024 * 1024
)

var (
	crlfBytes = []byte(CRLF)
)

// Reader is a streaming RESP protocol reader
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new streaming RESP reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// Reset discards buffered data and reads from r
func (r *Reader) Reset(rd io.Reader) {
	r.br.Reset(rd)
}

// ReadNext reads the next RESP value from the stream. Null bulk strings and null
// arrays are both returned as nil nodes.
func (r *Reader) ReadNext() (reply.Node, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return reply.Node{}, err
	}

	switch typeByte {
	case prefixStatus:
		line, err := r.readLine()
		if err != nil {
			return reply.Node{}, err
		}
		return reply.Node{Kind: reply.KindStatus, Str: line}, nil
	case prefixError:
		line, err := r.readLine()
		if err != nil {
			return reply.Node{}, err
		}
		return reply.Node{Kind: reply.KindError, Str: line}, nil
	case prefixInteger:
		return r.readInteger()
	case prefixBulk:
		return r.readBulkString()
	case prefixArray:
		return r.readArray()
	default:
		if typeByte == 0 {
			return reply.Node{}, fmt.Errorf("unknown RESP type: empty byte (connection may be closed)")
		}
		return reply.Node{}, fmt.Errorf("unknown RESP type: %c (0x%02x)", typeByte, typeByte)
	}
}

// readInteger reads an integer value
func (r *Reader) readInteger() (reply.Node, error) {
	line, err := r.readLine()
	if err != nil {
		return reply.Node{}, err
	}

	integer, err := parseInt64(line)
	if err != nil {
		return reply.Node{}, fmt.Errorf("invalid integer: %s", line)
	}

	return reply.Integer(integer), nil
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}
		if n > (1<<63-1)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + int64(b[i]-'0')
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

// readBulkString reads a bulk string value
func (r *Reader) readBulkString() (reply.Node, error) {
	line, err := r.readLine()
	if err != nil {
		return reply.Node{}, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return reply.Node{}, fmt.Errorf("invalid bulk string length: %s", line)
	}

	if length == -1 {
		return reply.Nil(), nil
	}

	if length < 0 || length > maxBulkSize {
		return reply.Node{}, fmt.Errorf("invalid bulk string length: %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return reply.Node{}, err
	}

	if err := r.expectCRLF(); err != nil {
		return reply.Node{}, err
	}

	return reply.Bulk(data), nil
}

// readArray reads an array value, recursing into nested arrays
func (r *Reader) readArray() (reply.Node, error) {
	line, err := r.readLine()
	if err != nil {
		return reply.Node{}, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return reply.Node{}, fmt.Errorf("invalid array length: %s", line)
	}

	if length == -1 {
		return reply.Nil(), nil
	}

	if length < 0 || length > maxArraySize {
		return reply.Node{}, fmt.Errorf("invalid array length: %d", length)
	}

	elems := make([]reply.Node, length)
	for i := int64(0); i < length; i++ {
		value, err := r.ReadNext()
		if err != nil {
			return reply.Node{}, err
		}
		elems[i] = value
	}

	return reply.Array(elems...), nil
}

// readLine reads a line terminated by CRLF
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}

	if len(line) < 2 {
		return nil, fmt.Errorf("line too short (%d bytes), expected CRLF terminator", len(line))
	}

	if !bytes.HasSuffix(line, crlfBytes) {
		lastTwo := line[len(line)-2:]
		return nil, fmt.Errorf("missing CRLF terminator, got [%d, %d] instead of [13, 10]", lastTwo[0], lastTwo[1])
	}

	return line[:len(line)-2], nil
}

// expectCRLF reads and validates CRLF terminator
func (r *Reader) expectCRLF() error {
	crlf := make([]byte, 2)
	n, err := io.ReadFull(r.br, crlf)
	if err != nil {
		return fmt.Errorf("failed to read CRLF terminator (read %d/2 bytes): %w", n, err)
	}

	if !bytes.Equal(crlf, crlfBytes) {
		return fmt.Errorf("expected CRLF terminator [13, 10], got [%d, %d]", crlf[0], crlf[1])
	}

	return nil
}
