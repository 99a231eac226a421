// Package signaling holds the room registry and the event handlers that
// mutate it. It never touches negotiation payloads; offers, answers and
// candidates pass through as opaque bytes addressed to a single connection.
package signaling

import (
	"errors"
	"sync"

	"github.com/peerline/signaling/internal/models"
)

var (
	// ErrRoomNotFound reports an operation against an unknown room key.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPeerNotFound reports a target connection or creator that is not
	// (or no longer) a member of the room.
	ErrPeerNotFound = errors.New("peer not found")
)

// Sender delivers an outbound event to a single live connection.
// Sends are fire-and-forget: delivery to a dead connection is swallowed.
type Sender interface {
	Send(connectionID string, msg models.SignalMessage)
}

// Presence is notified of membership changes so an external mirror (e.g.
// Redis) can track them. Calls must not block; failures are invisible here.
type Presence interface {
	PeerJoined(roomKey, connectionID string)
	PeerLeft(roomKey, connectionID string)
}

// Config wires the core's collaborators.
type Config struct {
	Sender   Sender
	Presence Presence // optional
	// Strict surfaces NotFound errors to callers instead of treating a
	// missing room, creator or target as a silent no-op.
	Strict bool
}

// Core owns the room registry. All mutation goes through its handler
// methods, serialized by one mutex; handlers are atomic with respect to
// room state.
type Core struct {
	sender   Sender
	presence Presence
	strict   bool

	mu    sync.Mutex
	rooms map[string]*room
}

// room state is advisory signaling bookkeeping on top of membership.
// callActive does not gate relaying.
type room struct {
	members       map[string]models.User
	order         []string // connection IDs in join order
	callActive    bool
	creatorUserID string
}

func NewCore(cfg Config) *Core {
	return &Core{
		sender:   cfg.Sender,
		presence: cfg.Presence,
		strict:   cfg.Strict,
		rooms:    make(map[string]*room),
	}
}

// delivery is an outbound event bound for one connection, collected under
// the lock and sent after release.
type delivery struct {
	to  string
	msg models.SignalMessage
}

func (c *Core) flush(out []delivery) {
	for _, d := range out {
		c.sender.Send(d.to, d.msg)
	}
}

// notFound applies the reference-error policy: nil in lenient mode,
// the error itself in strict mode.
func (c *Core) notFound(err error) error {
	if c.strict {
		return err
	}
	return nil
}

// Join inserts the connection into the room (creating it on first use),
// announces the newcomer to everyone else and replies to the joiner with
// the full member list, itself included. Re-joining replaces the entry.
func (c *Core) Join(connID string, msg models.SignalMessage) error {
	user := models.User{UserID: msg.UserID, UserName: msg.UserName, ConnectionID: connID}

	c.mu.Lock()
	r, ok := c.rooms[msg.RoomKey]
	if !ok {
		r = &room{members: make(map[string]models.User)}
		c.rooms[msg.RoomKey] = r
	}
	r.insert(user)

	var out []delivery
	for _, id := range r.others(connID) {
		out = append(out, delivery{id, models.SignalMessage{
			Type:         models.SignalTypeUserJoined,
			UserID:       user.UserID,
			UserName:     user.UserName,
			ConnectionID: connID,
		}})
	}
	out = append(out, delivery{connID, models.SignalMessage{
		Type:  models.SignalTypeRoomUsers,
		Users: r.snapshot(),
	}})
	c.mu.Unlock()

	if c.presence != nil {
		c.presence.PeerJoined(msg.RoomKey, connID)
	}
	c.flush(out)
	return nil
}

// StartCall marks the room's call active, records the caller as creator and
// rings every other member.
func (c *Core) StartCall(connID string, msg models.SignalMessage) error {
	c.mu.Lock()
	r, ok := c.rooms[msg.RoomKey]
	if !ok {
		c.mu.Unlock()
		return c.notFound(ErrRoomNotFound)
	}
	r.callActive = true
	r.creatorUserID = msg.UserID

	var out []delivery
	for _, id := range r.others(connID) {
		out = append(out, delivery{id, models.SignalMessage{
			Type:        models.SignalTypeIncomingCall,
			RoomKey:     msg.RoomKey,
			CreatorID:   msg.UserID,
			CreatorName: msg.UserName,
		}})
	}
	c.mu.Unlock()

	c.flush(out)
	return nil
}

// AcceptCall resolves the room's creator to a live connection by userId
// (linear scan; room sizes are small) and notifies that connection alone.
func (c *Core) AcceptCall(connID string, msg models.SignalMessage) error {
	c.mu.Lock()
	r, ok := c.rooms[msg.RoomKey]
	if !ok || r.creatorUserID == "" {
		c.mu.Unlock()
		return c.notFound(ErrRoomNotFound)
	}
	creator, ok := r.findByUserID(r.creatorUserID)
	c.mu.Unlock()
	if !ok {
		return c.notFound(ErrPeerNotFound)
	}

	c.sender.Send(creator.ConnectionID, models.SignalMessage{
		Type:     models.SignalTypeCallAccepted,
		UserID:   msg.UserID,
		UserName: msg.UserName,
	})
	return nil
}

// EndCall clears callActive and tells the rest of the room. The creator is
// left in place for a later accept against a restarted call.
func (c *Core) EndCall(connID string, msg models.SignalMessage) error {
	c.mu.Lock()
	r, ok := c.rooms[msg.RoomKey]
	if !ok {
		c.mu.Unlock()
		return c.notFound(ErrRoomNotFound)
	}
	r.callActive = false

	var out []delivery
	for _, id := range r.others(connID) {
		out = append(out, delivery{id, models.SignalMessage{
			Type:   models.SignalTypeCallEnded,
			UserID: msg.UserID,
		}})
	}
	c.mu.Unlock()

	c.flush(out)
	return nil
}

// Relay forwards an offer, answer or ice-candidate to the `to` connection,
// payload untouched, stamped with the sender's connection identity. The
// target is trusted in lenient mode; strict mode checks it against the
// room's member set first.
func (c *Core) Relay(connID string, msg models.SignalMessage) error {
	if c.strict {
		c.mu.Lock()
		r, ok := c.rooms[msg.RoomKey]
		if !ok {
			c.mu.Unlock()
			return ErrRoomNotFound
		}
		_, member := r.members[msg.To]
		c.mu.Unlock()
		if !member {
			return ErrPeerNotFound
		}
	}

	c.sender.Send(msg.To, models.SignalMessage{
		Type:       msg.Type,
		From:       connID,
		FromUserID: msg.FromUserID,
		UserName:   msg.UserName,
		Payload:    msg.Payload,
	})
	return nil
}

// ToggleMute relays a mute flag to the rest of the room. Nothing is stored.
func (c *Core) ToggleMute(connID string, msg models.SignalMessage) error {
	c.mu.Lock()
	r, ok := c.rooms[msg.RoomKey]
	if !ok {
		c.mu.Unlock()
		return c.notFound(ErrRoomNotFound)
	}

	var out []delivery
	for _, id := range r.others(connID) {
		out = append(out, delivery{id, models.SignalMessage{
			Type:   models.SignalTypeUserMuted,
			UserID: msg.UserID,
			Muted:  msg.Muted,
		}})
	}
	c.mu.Unlock()

	c.flush(out)
	return nil
}

// Disconnect removes the connection from every room it belongs to,
// broadcasting user-left per room and deleting rooms left empty. If the
// departing user is the creator of an active call, the call is ended for
// the remaining members first so no room is left ringing a dead creator.
func (c *Core) Disconnect(connID string) {
	var out []delivery
	var left []string

	c.mu.Lock()
	for key, r := range c.rooms {
		user, ok := r.remove(connID)
		if !ok {
			continue
		}
		left = append(left, key)

		if r.callActive && r.creatorUserID == user.UserID {
			r.callActive = false
			r.creatorUserID = ""
			for _, id := range r.order {
				out = append(out, delivery{id, models.SignalMessage{
					Type:   models.SignalTypeCallEnded,
					UserID: user.UserID,
				}})
			}
		}
		for _, id := range r.order {
			out = append(out, delivery{id, models.SignalMessage{
				Type:     models.SignalTypeUserLeft,
				UserID:   user.UserID,
				UserName: user.UserName,
			}})
		}
		if len(r.members) == 0 {
			delete(c.rooms, key)
		}
	}
	c.mu.Unlock()

	if c.presence != nil {
		for _, key := range left {
			c.presence.PeerLeft(key, connID)
		}
	}
	c.flush(out)
}

// RoomCount reports the number of live rooms, for the status side channel.
func (c *Core) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

func (r *room) insert(user models.User) {
	if _, ok := r.members[user.ConnectionID]; !ok {
		r.order = append(r.order, user.ConnectionID)
	}
	r.members[user.ConnectionID] = user
}

func (r *room) remove(connID string) (models.User, bool) {
	user, ok := r.members[connID]
	if !ok {
		return models.User{}, false
	}
	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return user, true
}

// snapshot returns the member list in join order.
func (r *room) snapshot() []models.User {
	users := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.members[id])
	}
	return users
}

// others returns every member's connection ID except the given one.
func (r *room) others(connID string) []string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if id != connID {
			ids = append(ids, id)
		}
	}
	return ids
}

// findByUserID resolves a logical identity to a member by linear scan.
// If two members share a userId the earliest joiner wins.
func (r *room) findByUserID(userID string) (models.User, bool) {
	for _, id := range r.order {
		if u := r.members[id]; u.UserID == userID {
			return u, true
		}
	}
	return models.User{}, false
}
