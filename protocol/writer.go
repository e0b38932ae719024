package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/raniellyferreira/redistmpl/reply"
)

// Writer provides buffered writing of RESP protocol messages
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new RESP protocol writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// WriteNode writes a reply node. Nil nodes are written as null bulk strings.
func (w *Writer) WriteNode(n reply.Node) error {
	switch n.Kind {
	case reply.KindStatus:
		return w.writeLine(prefixStatus, n.Str)
	case reply.KindError:
		return w.writeLine(prefixError, n.Str)
	case reply.KindInteger:
		return w.writeLine(prefixInteger, strconv.AppendInt(nil, n.Integer, 10))
	case reply.KindString:
		return w.WriteBulk(n.Str)
	case reply.KindNil, 0:
		return w.writeLine(prefixBulk, []byte("-1"))
	case reply.KindArray:
		if err := w.writeLine(prefixArray, strconv.AppendInt(nil, int64(len(n.Elements)), 10)); err != nil {
			return err
		}
		for _, e := range n.Elements {
			if err := w.WriteNode(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported reply kind: %s", n.Kind)
	}
}

// WriteBulk writes a bulk string
func (w *Writer) WriteBulk(data []byte) error {
	if err := w.writeLine(prefixBulk, strconv.AppendInt(nil, int64(len(data)), 10)); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteCommand writes a command argument vector as a RESP array of bulk strings
func (w *Writer) WriteCommand(argv [][]byte) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	if err := w.writeLine(prefixArray, strconv.AppendInt(nil, int64(len(argv)), 10)); err != nil {
		return err
	}
	for _, arg := range argv {
		if err := w.WriteBulk(arg); err != nil {
			return err
		}
	}
	return nil
}

// Buffered returns the number of bytes not yet flushed
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Reset resets the writer to write to a new underlying writer
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

func (w *Writer) writeLine(prefix byte, payload []byte) error {
	if err := w.bw.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := w.bw.Write(payload); err != nil {
		return err
	}
	return w.writeCRLF()
}

// writeCRLF writes the CRLF terminator
func (w *Writer) writeCRLF() error {
	_, err := w.bw.WriteString(CRLF)
	return err
}
