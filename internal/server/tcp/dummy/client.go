package dummy

import (
	"io"
	"net"
)

// CircularClient replays the pieces it was initialized with, forever unless
// OneTime is called. Used across the pipeline tests instead of a socket.
type CircularClient struct {
	data            [][]byte
	tmp             []byte
	written         []byte
	pointer         int
	closed, oneTime bool
}

func NewCircularClient(data ...[]byte) *CircularClient {
	return &CircularClient{data: data}
}

func (c *CircularClient) Read() ([]byte, error) {
	if len(c.tmp) > 0 {
		data := c.tmp
		c.tmp = nil

		return data, nil
	}

	if c.closed {
		return nil, io.EOF
	}

	if c.pointer >= len(c.data) {
		if c.oneTime {
			c.closed = true
			return nil, io.EOF
		}

		c.pointer = 0
	}

	piece := c.data[c.pointer]
	c.pointer++

	if c.oneTime && c.pointer == len(c.data) {
		c.closed = true
	}

	return piece, nil
}

func (c *CircularClient) Unread(takeback []byte) {
	if len(takeback) > 0 {
		c.tmp = takeback
	}
}

func (c *CircularClient) Write(b []byte) error {
	c.written = append(c.written, b...)
	return nil
}

// Written returns everything written so far.
func (c *CircularClient) Written() []byte {
	return c.written
}

func (c *CircularClient) Remote() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}
}

func (c *CircularClient) Close() error {
	c.closed = true
	return nil
}

// OneTime makes the client return io.EOF after the data is exhausted
// instead of replaying it.
func (c *CircularClient) OneTime() *CircularClient {
	c.oneTime = true
	return c
}

// NopClient errors on reads and swallows writes.
type NopClient struct{}

func NewNopClient() NopClient {
	return NopClient{}
}

func (NopClient) Read() ([]byte, error) {
	return nil, io.EOF
}

func (NopClient) Unread([]byte) {}

func (NopClient) Write([]byte) error {
	return nil
}

func (NopClient) Remote() net.Addr {
	return nil
}

func (NopClient) Close() error {
	return nil
}
