package matchmaking

import "go.uber.org/zap"

// Disconnect handles a lost connection. A queued player simply leaves the queue; a
// seated player forfeits and the opponent wins at once, whatever the score. The
// registry entry for connID is always removed.
func (s *Service) Disconnect(connID string) {
	p, known := s.players[connID]
	roomID := ""
	if known {
		roomID = p.RoomID
	}

	if !s.Remove(connID) {
		s.logger.Debug("player disconnected outside a match",
			zap.String("conn_id", connID),
			zap.Bool("registered", known),
		)
		return
	}

	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if winner, ok := room.Forfeit(connID); ok {
		s.logger.Info("player disconnected mid-match",
			zap.String("conn_id", connID),
			zap.String("room_id", roomID),
			zap.String("winner", winner.ID),
		)
	}
}
