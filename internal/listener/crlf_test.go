package listener

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pixil98/go-testutil"
)

type fakeReadWriter struct {
	in  io.Reader
	out bytes.Buffer
}

func (f *fakeReadWriter) Read(p []byte) (int, error) {
	return f.in.Read(p)
}

func (f *fakeReadWriter) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func TestCRLFReadWriter_Read(t *testing.T) {
	tests := map[string]struct {
		input   string
		oneByte bool
		exp     string
	}{
		"crlf":             {input: "look\r\nsay hi\r\n", exp: "look\nsay hi\n"},
		"bare cr":          {input: "look\r", exp: "look\n"},
		"cr nul":           {input: "look\r\x00say hi\r\x00", exp: "look\nsay hi\n"},
		"plain lf":         {input: "look\n", exp: "look\n"},
		"no ending":        {input: "look", exp: "look"},
		"blank lines":      {input: "\r\n\r\nlook\r\n", exp: "\n\nlook\n"},
		"crlf split":       {input: "look\r\nsay hi\r\n", oneByte: true, exp: "look\nsay hi\n"},
		"cr nul split":     {input: "look\r\x00north\r\x00", oneByte: true, exp: "look\nnorth\n"},
		"lf after content": {input: "a\rb\nc", oneByte: true, exp: "a\nb\nc"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var in io.Reader = strings.NewReader(tt.input)
			if tt.oneByte {
				in = iotest.OneByteReader(in)
			}
			rw := newCRLFReadWriter(&fakeReadWriter{in: in})

			got, err := io.ReadAll(rw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "read", string(got), tt.exp)
		})
	}
}

func TestCRLFReadWriter_Write(t *testing.T) {
	tests := map[string]struct {
		input string
		exp   string
	}{
		"prompt":        {input: "The Void\n> ", exp: "The Void\r\n> "},
		"leading lf":    {input: "\nYou see nothing.\n", exp: "\r\nYou see nothing.\r\n"},
		"already crlf":  {input: "Name:\r\nPassword:\n", exp: "Name:\r\nPassword:\r\n"},
		"no line break": {input: "> ", exp: "> "},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			inner := &fakeReadWriter{in: strings.NewReader("")}
			rw := newCRLFReadWriter(inner)

			n, err := rw.Write([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "n", n, len(tt.input))
			testutil.AssertEqual(t, "written", inner.out.String(), tt.exp)
		})
	}
}

type brokenConn struct{}

func (brokenConn) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }
func (brokenConn) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestCRLFReadWriter_Errors(t *testing.T) {
	rw := newCRLFReadWriter(brokenConn{})

	n, err := rw.Write([]byte("hi\n"))
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("write error = %v, expected %v", err, io.ErrClosedPipe)
	}
	testutil.AssertEqual(t, "written", n, 0)

	n, err = rw.Read(make([]byte, 8))
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("read error = %v, expected %v", err, io.ErrClosedPipe)
	}
	testutil.AssertEqual(t, "read", n, 0)
}
