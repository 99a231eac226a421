package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerline/signaling/internal/models"
	"github.com/peerline/signaling/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Server owns the live connection table and fronts the signaling core.
// It implements signaling.Sender: the core addresses connections by ID,
// the server resolves them to sockets.
type Server struct {
	core *signaling.Core

	mu      sync.RWMutex
	clients map[string]*Client
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewServer(presence signaling.Presence, strict bool) *Server {
	s := &Server{clients: make(map[string]*Client)}
	s.core = signaling.NewCore(signaling.Config{
		Sender:   s,
		Presence: presence,
		Strict:   strict,
	})
	return s
}

// RegisterRoutes attaches the signaling endpoints to the router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/ws", s.HandleSignaling)
}

// Send delivers an event to a live connection. Unknown or dead connections
// are swallowed: every relay is best-effort.
func (s *Server) Send(connectionID string, msg models.SignalMessage) {
	s.mu.RLock()
	client := s.clients[connectionID]
	s.mu.RUnlock()
	if client == nil {
		return
	}
	client.sendMessage(msg)
}

// ConnectionCount reports the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleSignaling upgrades the HTTP request and runs the connection's
// read/write pumps. Each connection gets a fresh UUID as its identity and
// learns it through an initial "connected" event.
func (s *Server) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	log.Printf("Connection established: %s", client.ID)

	client.sendMessage(models.SignalMessage{
		Type:         models.SignalTypeConnected,
		ConnectionID: client.ID,
	})

	go client.writePump()
	go s.readPump(client)
}

func (s *Server) unregister(client *Client) {
	s.mu.Lock()
	delete(s.clients, client.ID)
	s.mu.Unlock()

	// Membership cleanup after the connection is gone from the table, so
	// the leave broadcasts can no longer race a send to the dead socket.
	s.core.Disconnect(client.ID)
	log.Printf("Connection closed: %s", client.ID)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		client.Conn.Close()
		s.unregister(client)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Failed to parse message from %s: %v", client.ID, err)
			client.sendMessage(models.ErrorMessage(models.ErrInvalidMessage))
			continue
		}

		if err := msg.Validate(); err != nil {
			log.Printf("Rejected message from %s: %v", client.ID, err)
			client.sendMessage(models.ErrorMessage(err))
			continue
		}

		if err := s.dispatch(client.ID, msg); err != nil {
			client.sendMessage(models.ErrorMessage(err))
		}
	}
}

// dispatch routes a validated message to its core handler. A nil return in
// lenient mode can still be a no-op; strict mode turns those into errors.
func (s *Server) dispatch(connID string, msg models.SignalMessage) error {
	switch msg.Type {
	case models.SignalTypeJoinRoom:
		return s.core.Join(connID, msg)
	case models.SignalTypeStartCall:
		return s.core.StartCall(connID, msg)
	case models.SignalTypeAcceptCall:
		return s.core.AcceptCall(connID, msg)
	case models.SignalTypeEndCall:
		return s.core.EndCall(connID, msg)
	case models.SignalTypeToggleMute:
		return s.core.ToggleMute(connID, msg)
	default:
		if msg.IsNegotiation() {
			return s.core.Relay(connID, msg)
		}
		return models.ErrInvalidMessage
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMessage(msg models.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.Send <- data:
	default:
		log.Printf("Failed to send message to peer %s, buffer full", c.ID)
	}
}
