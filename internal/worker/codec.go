// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"bufio"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Conn is a msgpack value stream over a reader/writer pair. Each Send is
// flushed so the peer sees it immediately.
type Conn struct {
	w    *bufio.Writer
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
	lock sync.Mutex
}

// NewConn wraps r and w; either may be nil for a one-way connection
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{}
	if w != nil {
		c.w = bufio.NewWriter(w)
		c.enc = msgpack.NewEncoder(c.w)
	}
	if r != nil {
		c.dec = msgpack.NewDecoder(bufio.NewReader(r))
	}
	return c
}

func (c *Conn) Send(v interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.enc.Encode(v); err != nil {
		return err
	}
	return c.w.Flush()
}

// Recv decodes the next value. It returns io.EOF when the peer closed.
func (c *Conn) Recv(v interface{}) error {
	return c.dec.Decode(v)
}

// connTransport serves a worker over a Conn, e.g. the child's stdin/stdout
type connTransport struct {
	conn *Conn
}

func (t connTransport) Recv() (Request, error) {
	var req Request
	err := t.conn.Recv(&req)
	return req, err
}

func (t connTransport) Send(rep Reply) error {
	return t.conn.Send(&rep)
}
