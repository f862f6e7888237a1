package telnet

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pipeConn returns a Conn reading whatever is written to the returned writer.
func pipeConn(t *testing.T, input []byte) *Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	go func() {
		_, _ = client.Write(input)
		client.Close()
	}()
	return NewConn(server, time.Second, time.Second)
}

func TestReadLine_CRLFAndLF(t *testing.T) {
	c := pipeConn(t, []byte("first\r\nsecond\nthird\r"))
	for _, want := range []string{"first", "second", "third"} {
		got, err := c.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := c.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_DropsTelnetCommands(t *testing.T) {
	input := []byte{IAC, WILL, OptSuppressGoAhead, 'h', IAC, SB, 24, 0, 'x', IAC, SE, 'i', IAC, 241, '\n'}
	c := pipeConn(t, input)
	got, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestReadLine_KeepsUTF8AndDropsControls(t *testing.T) {
	c := pipeConn(t, []byte("  你好\x07，世界\t!  \n"))
	got, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "你好，世界\t!", got)
}

func TestReadLine_ReplacesInvalidUTF8(t *testing.T) {
	c := pipeConn(t, []byte{'a', 0xC3, 'b', '\n'})
	got, err := c.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a�b", got)
}

func TestReadLine_TruncatesLongLines(t *testing.T) {
	c := pipeConn(t, []byte(strings.Repeat("x", MaxLineBytes+100)+"\n"))
	got, err := c.ReadLine()
	require.NoError(t, err)
	assert.Len(t, got, MaxLineBytes)
}

func TestWriteLine_ConvertsNewlines(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	c := NewConn(server, time.Second, time.Second)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := io.ReadAtLeast(client, buf, len("a\r\nb\r\n"))
		done <- buf[:n]
	}()
	require.NoError(t, c.WriteLine("a\nb"))
	assert.Equal(t, "a\r\nb\r\n", string(<-done))
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "bot: hi", StripANSI(Colorize(Cyan, "bot")+": "+Colorize(Bold, "hi")))
}

// Property: a line without IAC, control bytes or newlines is read back unchanged.
func TestPropertyReadLinePlainText(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 一-龥]{0,40}`).Draw(rt, "text")
		server, client := net.Pipe()
		defer server.Close()
		go func() {
			_, _ = client.Write([]byte(text + "\n"))
			client.Close()
		}()
		got, err := NewConn(server, time.Second, time.Second).ReadLine()
		if err != nil {
			rt.Fatalf("ReadLine: %v", err)
		}
		if got != strings.TrimSpace(text) {
			rt.Fatalf("got %q, want %q", got, strings.TrimSpace(text))
		}
	})
}
