package matchmaking

import (
	"errors"
	"fmt"

	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// HandleJoin serves a joinQueue message. Validation failures are reported to the
// sender only.
func (s *Service) HandleJoin(connID string, req protocol.JoinQueue) {
	req = req.Normalize()
	err := s.Join(connID, req.DisplayName, req.CardPool)

	switch {
	case err == nil:
	case IsCardCount(err):
		s.messenger.Send(connID, protocol.EventCardLengthError, protocol.Message{
			Message: fmt.Sprintf("you have to select %d cards!", s.cfg.CardPoolSize),
		})
	case errors.Is(err, ErrValidation):
		s.messenger.Send(connID, protocol.EventInvalidPayload, protocol.Message{Message: err.Error()})
	default:
		s.logger.Debug("join ignored", zap.String("conn_id", connID), zap.Error(err))
	}
}

// HandleSelect serves a selectCard message. Invalid selections are ignored.
func (s *Service) HandleSelect(connID string, req protocol.SelectCard) {
	if !s.SelectCard(connID, req.Index) {
		s.logger.Debug("selection ignored",
			zap.String("conn_id", connID),
			zap.Int("index", req.Index),
		)
	}
}

// HandleDisconnect serves a closed connection
func (s *Service) HandleDisconnect(connID string) {
	s.Disconnect(connID)
}
