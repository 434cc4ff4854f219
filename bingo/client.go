package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
	maxFrameSize   = 1 << 16
)

// Client is one live websocket connection. id is the connection handle the
// store keys players by.
type Client struct {
	id   string
	conn *websocket.Conn
	reg  *Registry

	mu     sync.Mutex
	send   chan ServerEvent
	closed bool
}

func NewClient(id string, conn *websocket.Conn, reg *Registry) *Client {
	return &Client{
		id:   id,
		conn: conn,
		reg:  reg,
		send: make(chan ServerEvent, sendBufferSize),
	}
}

func (c *Client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("conn", c.id).Msg("[bingo] read message")
			return
		}
		msg, err := DecodeInbound(payload)
		if err != nil {
			log.Debug().Err(err).Str("conn", c.id).Msg("[bingo] dropping client frame")
			continue
		}
		c.reg.Route(c, msg)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("[bingo] write json")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues ev without blocking. A full queue counts as a failed send and
// the connection is dropped through the normal disconnect path.
func (c *Client) push(ev ServerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		log.Warn().Str("conn", c.id).Str("event", ev.Type).Msg("[bingo] send queue full; dropping connection")
		go c.close()
		return false
	}
}

func (c *Client) pushError(msg string) {
	c.push(errorEvent(msg))
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	c.reg.Disconnect(c)
}
