package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/anhphanck/social-app/internal/database"
	"github.com/anhphanck/social-app/internal/stats"
	"github.com/anhphanck/social-app/internal/types"
)

// persistTimeout bounds a single store round-trip for a send attempt, so a
// hung store call fails the attempt instead of wedging the connection.
const persistTimeout = 10 * time.Second

type stopReq struct {
	done chan struct{}
}

// Gateway owns the connection registry and routes direct messages between
// connections. Presence changes fan out to every open connection,
// authenticated or not, as a full snapshot of the online set.
type Gateway struct {
	log            *log.Logger
	db             database.SocialRepository
	stats          stats.StatsProvider
	registry       *Registry
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	RegisterChan   chan *Client
	deregisterChan chan *Client
	broadcastChan  chan *ServerMessage
	stop           chan stopReq
}

func NewGateway(logger *log.Logger, db database.SocialRepository, sp stats.StatsProvider) (*Gateway, error) {
	for _, name := range []string{
		"NumConnections",
		"NumOnlineUsers",
		"NumMessagesSent",
		"NumMessagesDelivered",
		"NumPresenceBroadcasts",
	} {
		sp.RegisterMetric(name)
	}

	return &Gateway{
		log:            logger,
		db:             db,
		stats:          sp,
		registry:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		broadcastChan:  make(chan *ServerMessage, 256),
		stop:           make(chan stopReq),
	}, nil
}

func (gw *Gateway) Run() {
	for {
		select {
		case c := <-gw.RegisterChan:
			gw.addClient(c)
			gw.stats.Incr("NumConnections")
			if c.authenticated {
				gw.log.Printf("user %d connected (%s)", c.user.Id, c.id)
				if gw.registry.register(c.user.Id, c) {
					gw.stats.Incr("NumOnlineUsers")
					gw.broadcastPresence()
				}
			} else {
				gw.log.Printf("anonymous connection %s opened", c.id)
			}
		case c := <-gw.deregisterChan:
			gw.removeClient(c)
			gw.stats.Decr("NumConnections")
			if c.authenticated {
				gw.log.Printf("user %d disconnected (%s)", c.user.Id, c.id)
				if gw.registry.deregister(c) {
					gw.stats.Decr("NumOnlineUsers")
					gw.broadcastPresence()
				}
			}
		case msg := <-gw.broadcastChan:
			gw.broadcast(msg)
		case req := <-gw.stop:
			gw.log.Println("closing client connections")
			gw.clientsLock.Lock()
			for c := range gw.clients {
				c.stopClient()
			}
			gw.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

func (gw *Gateway) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case gw.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver persists the message and pushes it to each of the recipient's
// active connections. A recipient with no active connections still gets a
// durable write and sees the message on the next conversation fetch.
func (gw *Gateway) deliver(senderId int, msg *ClientMessage) (*types.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	dbMsg, err := gw.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:   senderId,
		ReceiverId: msg.Send.To,
		Content:    msg.Send.Content,
		FileUrl:    msg.Send.FileUrl,
		FileType:   string(msg.Send.FileType),
	})
	if err != nil {
		return nil, err
	}
	gw.stats.Incr("NumMessagesSent")

	stored := messageFromDb(dbMsg)
	stored.ClientId = msg.Id

	for _, rc := range gw.registry.activeClients(msg.Send.To) {
		if rc.queueMessage(pushMessage(stored)) {
			gw.stats.Incr("NumMessagesDelivered")
		}
	}

	return stored, nil
}

// BroadcastMessageDeleted notifies every open connection that a message was
// soft-deleted so clients can replace it in place.
func (gw *Gateway) BroadcastMessageDeleted(msg *types.Message) {
	select {
	case gw.broadcastChan <- deleteNotification(msg):
	default:
		gw.log.Println("broadcast channel full, dropping delete notification")
	}
}

// OnlineUserIds returns a snapshot of the users with at least one open
// connection.
func (gw *Gateway) OnlineUserIds() []int {
	return gw.registry.onlineUserIds()
}

func (gw *Gateway) broadcastPresence() {
	gw.broadcast(presenceSnapshot(gw.registry.onlineUserIds()))
	gw.stats.Incr("NumPresenceBroadcasts")
}

func (gw *Gateway) broadcast(msg *ServerMessage) {
	gw.clientsLock.Lock()
	defer gw.clientsLock.Unlock()

	for c := range gw.clients {
		c.queueMessage(msg)
	}
}

func (gw *Gateway) addClient(c *Client) {
	gw.clientsLock.Lock()
	defer gw.clientsLock.Unlock()
	gw.clients[c] = struct{}{}
}

func (gw *Gateway) removeClient(c *Client) {
	gw.clientsLock.Lock()
	defer gw.clientsLock.Unlock()
	delete(gw.clients, c)
}

func messageFromDb(m database.Message) *types.Message {
	return &types.Message{
		Id:         m.Id,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Content:    m.Content,
		FileUrl:    m.FileUrl,
		FileType:   types.FileType(m.FileType),
		IsRead:     m.IsRead,
		IsDeleted:  m.IsDeleted,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
