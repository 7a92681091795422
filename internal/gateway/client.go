package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/anhphanck/social-app/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one open bidirectional connection. The principal is bound at
// handshake time and immutable for the connection's lifetime; anonymous
// connections carry a zero user and authenticated=false.
type Client struct {
	id            string
	conn          *websocket.Conn
	gateway       *Gateway
	log           *log.Logger
	user          types.User
	authenticated bool
	send          chan *ServerMessage
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewClient(user types.User, authenticated bool, conn *websocket.Conn, gw *Gateway, l *log.Logger) *Client {
	return &Client{
		id:            shortid.MustGenerate(),
		conn:          conn,
		gateway:       gw,
		log:           l,
		user:          user,
		authenticated: authenticated,
		send:          make(chan *ServerMessage, 256),
		stop:          make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ackError(msg.Id, "invalid message format"))
			continue
		}

		msg.client = c

		switch {
		case msg.Send != nil:
			c.handleSend(&msg)
		case msg.Presence != nil:
			// reply to this connection only
			c.queueMessage(presenceSnapshot(c.gateway.registry.onlineUserIds()))
		default:
			c.queueMessage(ackError(msg.Id, "unknown operation"))
		}
	}
}

// handleSend runs synchronously in the read loop, so acks for one
// connection are returned in submission order.
func (c *Client) handleSend(msg *ClientMessage) {
	if !c.authenticated {
		c.queueMessage(ackError(msg.Id, "unauthorized"))
		return
	}

	if msg.Send.To <= 0 {
		c.queueMessage(ackError(msg.Id, "missing recipient"))
		return
	}

	if msg.Send.Content == "" && msg.Send.FileUrl == "" {
		c.queueMessage(ackError(msg.Id, "empty message"))
		return
	}

	stored, err := c.gateway.deliver(c.user.Id, msg)
	if err != nil {
		c.log.Printf("deliver from user %d: %v", c.user.Id, err)
		c.queueMessage(ackError(msg.Id, "failed to save message"))
		return
	}

	c.queueMessage(ackSuccess(msg.Id, stored))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send channel full for connection %s, dropping message", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.gateway.deregisterChan <- c
	c.stopClient()
}
