package testutil

import (
	"bytes"
	"fmt"
	"net"
	"testing"
	"time"
)

// TelnetClient is a line-oriented client for exercising the Telnet dev
// transport. Output read past a match is kept for the next ReadUntil.
type TelnetClient struct {
	conn    net.Conn
	t       *testing.T
	pending []byte
}

// NewTelnetClient dials addr and closes the connection when the test ends.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil returns everything received up to and including the first
// occurrence of substr, failing the test on timeout.
//
// Precondition: substr must be non-empty.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	tmp := make([]byte, 1024)
	for {
		if i := bytes.Index(c.pending, []byte(substr)); i >= 0 {
			end := i + len(substr)
			out := string(c.pending[:end])
			c.pending = append([]byte(nil), c.pending[end:]...)
			return out
		}
		n, err := c.conn.Read(tmp)
		c.pending = append(c.pending, tmp[:n]...)
		if err != nil && !bytes.Contains(c.pending, []byte(substr)) {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, c.pending, err)
		}
	}
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
// Postcondition: text + \r\n is written to the connection.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := fmt.Fprintf(c.conn, "%s\r\n", text)
	if err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Login waits for the name prompt, sends name and waits for the greeting.
func (c *TelnetClient) Login(name string) {
	c.t.Helper()
	c.ReadUntil("你的名字：", 5*time.Second)
	c.Send(name)
	c.ReadUntil("你好 "+name, 5*time.Second)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
