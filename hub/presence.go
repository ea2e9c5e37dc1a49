package hub

import (
	"log"

	"github.com/ws-gateway/wire"
)

// setStatus flips the user's cached status and broadcasts the change to
// the server rooms captured when the session connected.
func (h *Hub) setStatus(s *Session, status string) {
	if err := h.status.SetStatus(s.UserID, status); err != nil {
		log.Printf("set status %v for %v: %v", status, s.UserID, err)
	}
	frame, err := wire.Marshal(wire.EvUserStatusUpdate,
		&wire.UserStatusUpdate{UserID: s.UserID, Status: status})
	if err != nil {
		log.Printf("marshal user-status-update: %v", err)
		return
	}
	for _, roomID := range s.serverRooms {
		if room := h.getRoom(roomID); room != nil {
			room.packet <- &roomPacket{use: useForBroadcast, frame: frame}
		}
	}
}
