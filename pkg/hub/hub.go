package hub

import (
	"sync"
)

// Conn is the transport side of a live session. Satisfied by
// *websocket.Conn from gofiber/contrib/websocket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// websocket.TextMessage
const textMessage = 1

// Session is one live connection from a business application instance.
type Session struct {
	conn Conn
	// writeMu serializes writes; websocket conns reject concurrent writers.
	writeMu sync.Mutex
	// shortcode is guarded by the owning hub's mutex. Empty until the
	// session joins a room.
	shortcode string
}

func NewSession(conn Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(textMessage, payload)
}

// Hub owns the shortcode -> session-set registry. All mutation goes through
// Join/Leave; Broadcast only reads. The single mutex is the serialization
// discipline for connection handlers and callback handlers touching the
// same room.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{})}
}

// Join associates the session with a room, creating the room if absent.
// Re-joining the same room is a no-op; joining a different room moves the
// session (last join wins).
func (h *Hub) Join(s *Session, shortcode string) {
	if shortcode == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if s.shortcode == shortcode {
		return
	}
	if s.shortcode != "" {
		h.removeLocked(s)
	}

	room, ok := h.rooms[shortcode]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[shortcode] = room
	}
	room[s] = struct{}{}
	s.shortcode = shortcode
}

// Leave removes the session from its room, deleting the room entry when it
// becomes empty so the registry does not leak with connection churn.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Session) {
	if s.shortcode == "" {
		return
	}
	if room, ok := h.rooms[s.shortcode]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, s.shortcode)
		}
	}
	s.shortcode = ""
}

// Broadcast delivers payload to every session in the shortcode's room.
// Sessions whose transport fails are skipped silently; a broken connection
// self-heals through Leave when its read loop exits. Returns the number of
// sessions the payload reached.
func (h *Hub) Broadcast(shortcode string, payload []byte) int {
	h.mu.Lock()
	members := make([]*Session, 0, len(h.rooms[shortcode]))
	for s := range h.rooms[shortcode] {
		members = append(members, s)
	}
	h.mu.Unlock()

	delivered := 0
	for _, s := range members {
		if err := s.send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// RoomCount reports how many rooms currently hold at least one session.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// SessionCount reports the number of sessions in one room.
func (h *Hub) SessionCount(shortcode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[shortcode])
}
