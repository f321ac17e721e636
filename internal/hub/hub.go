// Package hub tracks the websocket connections of this process and their
// room memberships, and delivers frames to room-scoped sets of clients.
// All state is owned by a single goroutine fed through a command channel.
package hub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pulsegate/pulsegate/internal/metrics"
)

const commandTimeout = 5 * time.Second

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	rooms        []string
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type emitCmd struct {
	baseHubCmd
	rooms []string
	data  []byte
}

type roomCountCmd struct {
	baseHubCmd
	room         string
	replyChannel chan int
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

type client struct {
	writer *clientWriter
	rooms  map[string]struct{}
}

// Hub is the in-process connection registry.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*client
	roomIndex  map[string]map[*websocket.Conn]struct{}
	maxClients int
	done       chan struct{}
}

func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*client),
		roomIndex:  make(map[string]map[*websocket.Conn]struct{}),
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a connection as a member of the given rooms. Returns an
// error if the process connection limit is reached.
func (h *Hub) Register(conn *websocket.Conn, rooms []string) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, rooms: rooms, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from all its rooms.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Emit delivers data to clients scoped by rooms: no rooms means every
// connected client, one room means its members, multiple rooms means the
// clients that are members of ALL of them.
func (h *Hub) Emit(rooms []string, data []byte) {
	h.cmdCh <- emitCmd{rooms: rooms, data: data}
}

// RoomCount returns the number of members in a room, or -1 on timeout.
func (h *Hub) RoomCount(room string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- roomCountCmd{room: room, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("RoomCount timed out", "room", room, "timeout", commandTimeout)
		return -1
	}
}

// ClientCount returns the number of connected clients, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every connection and shuts the actor down.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case emitCmd:
			h.handleEmit(c)
		case roomCountCmd:
			c.replyChannel <- len(h.roomIndex[c.room])
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: connection limit reached", "max_clients", h.maxClients)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("connection limit (%d) reached", h.maxClients)
		return
	}

	cl := &client{
		writer: newClientWriter(c.connection, h.clock),
		rooms:  make(map[string]struct{}, len(c.rooms)),
	}
	for _, room := range c.rooms {
		cl.rooms[room] = struct{}{}
		members, ok := h.roomIndex[room]
		if !ok {
			members = make(map[*websocket.Conn]struct{})
			h.roomIndex[room] = members
		}
		members[c.connection] = struct{}{}
	}
	h.clients[c.connection] = cl

	metrics.HubConnectedClients.Set(float64(len(h.clients)))
	metrics.HubActiveRooms.Set(float64(len(h.roomIndex)))

	slog.Debug("Client registered", "rooms", c.rooms, "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cl, exists := h.clients[conn]
	if !exists {
		return
	}

	cl.writer.stop()
	delete(h.clients, conn)
	for room := range cl.rooms {
		members := h.roomIndex[room]
		delete(members, conn)
		if len(members) == 0 {
			delete(h.roomIndex, room)
		}
	}

	metrics.HubConnectedClients.Set(float64(len(h.clients)))
	metrics.HubActiveRooms.Set(float64(len(h.roomIndex)))

	slog.Debug("Client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handleEmit(c emitCmd) {
	var slow []*websocket.Conn

	for conn, cl := range h.clients {
		if !memberOfAll(cl, c.rooms) {
			continue
		}
		select {
		case cl.writer.sendChannel <- c.data:
			metrics.HubMessagesDelivered.Inc()
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client")
		metrics.HubSlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

// memberOfAll implements the chained-scope semantics: a message addressed
// to several rooms reaches only clients that are members of every one of
// them. No rooms means broadcast to everyone.
func memberOfAll(cl *client, rooms []string) bool {
	for _, room := range rooms {
		if _, ok := cl.rooms[room]; !ok {
			return false
		}
	}
	return true
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.clients))
	for conn, cl := range h.clients {
		cl.writer.stopGraceful("Server shutting down")
		delete(h.clients, conn)
	}
	h.roomIndex = make(map[string]map[*websocket.Conn]struct{})
	metrics.HubConnectedClients.Set(0)
	metrics.HubActiveRooms.Set(0)
}
