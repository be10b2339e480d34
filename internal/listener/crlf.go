package listener

import (
	"bytes"
	"io"
)

// crlfReadWriter adapts a telnet stream to the newline terminated text the
// session layer reads and writes. On input CR LF, CR NUL and a bare CR all
// become LF. On output a LF not already preceded by CR becomes CR LF.
type crlfReadWriter struct {
	rw io.ReadWriter

	// afterCR is set when the last byte read was a CR, so a LF or NUL that
	// opens the next read finishes the same line ending.
	afterCR bool
}

func newCRLFReadWriter(rw io.ReadWriter) io.ReadWriter {
	return &crlfReadWriter{rw: rw}
}

func (c *crlfReadWriter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := c.rw.Read(p)
		n = c.normalize(p[:n])
		// A read holding only the tail of a line ending leaves nothing.
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// normalize rewrites line endings in b in place and returns the new length.
func (c *crlfReadWriter) normalize(b []byte) int {
	n := 0
	for _, ch := range b {
		wasCR := c.afterCR
		c.afterCR = ch == '\r'
		switch {
		case ch == '\r':
			ch = '\n'
		case wasCR && (ch == '\n' || ch == 0):
			continue
		}
		b[n] = ch
		n++
	}
	return n
}

func (c *crlfReadWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+bytes.Count(p, []byte("\n")))
	for i, ch := range p {
		if ch == '\n' && (i == 0 || p[i-1] != '\r') {
			out = append(out, '\r')
		}
		out = append(out, ch)
	}
	if _, err := c.rw.Write(out); err != nil {
		return 0, err
	}
	// Report the caller's length; the expansion is invisible to it.
	return len(p), nil
}
