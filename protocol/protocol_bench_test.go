package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/raniellyferreira/redistmpl/reply"
)

// BenchmarkReaderParseBulkString benchmarks parsing bulk strings
func BenchmarkReaderParseBulkString(b *testing.B) {
	sizes := []struct {
		name string
		data []byte
	}{
		{"Small_10B", []byte("$10\r\n0123456789\r\n")},
		{"Medium_1KB", append(append([]byte("$1024\r\n"), bytes.Repeat([]byte("x"), 1024)...), "\r\n"...)},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r := NewReader(bytes.NewReader(size.data))
				if _, err := r.ReadNext(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkReaderParseNestedArray benchmarks parsing a nested array reply
func BenchmarkReaderParseNestedArray(b *testing.B) {
	input := []byte("*3\r\n$1\r\na\r\n*2\r\n:2\r\n$-1\r\n+OK\r\n")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := NewReader(bytes.NewReader(input))
		if _, err := r.ReadNext(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWriterCommand benchmarks encoding a command vector
func BenchmarkWriterCommand(b *testing.B) {
	argv := [][]byte{[]byte("SET"), []byte("key"), []byte("value")}
	w := NewWriter(io.Discard)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := w.WriteCommand(argv); err != nil {
			b.Fatal(err)
		}
	}
	_ = w.Flush()
}

// BenchmarkWriterNode benchmarks encoding an array reply
func BenchmarkWriterNode(b *testing.B) {
	n := reply.Array(reply.BulkString("a"), reply.Integer(1), reply.Nil())
	w := NewWriter(io.Discard)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := w.WriteNode(n); err != nil {
			b.Fatal(err)
		}
	}
	_ = w.Flush()
}
