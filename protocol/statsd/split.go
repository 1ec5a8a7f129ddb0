package statsd

import "bytes"

// LineSplitter iterates over the lines of a packet without allocating.
// A line ends at "\n", "\r" or "\r\n". An unterminated final line is still a
// line, but a terminator at the very end of the buffer does not start a new
// empty one, so "a\nb" and "a\nb\n" both yield exactly two lines.
type LineSplitter struct {
	buf   []byte
	chunk []byte
}

func NewLineSplitter(buf []byte) *LineSplitter {
	return &LineSplitter{buf: buf}
}

// Next advances to the next line, returning false once the buffer is
// exhausted.
func (ls *LineSplitter) Next() bool {
	if len(ls.buf) == 0 {
		ls.chunk = nil
		return false
	}

	end := bytes.IndexAny(ls.buf, "\r\n")
	if end == -1 {
		ls.chunk = ls.buf
		ls.buf = nil
		return true
	}

	ls.chunk = ls.buf[:end]
	skip := 1
	if ls.buf[end] == '\r' && end+1 < len(ls.buf) && ls.buf[end+1] == '\n' {
		skip = 2
	}
	ls.buf = ls.buf[end+skip:]
	return true
}

// Chunk returns the current line, without its terminator. The slice aliases
// the buffer passed to NewLineSplitter.
func (ls *LineSplitter) Chunk() []byte {
	return ls.chunk
}
