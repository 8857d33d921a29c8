package app

import (
	"encoding/json"

	"go.uber.org/zap"

	"parley/client/internal/logger"
	"parley/client/internal/realtime"
)

// handleMessages rebuilds the ordered message list from a full snapshot of
// the active conversation and re-renders. Snapshots for a superseded
// subscription (epoch mismatch) are discarded before any render.
func (s *Service) handleMessages(epoch uint64, conversationID string, snap realtime.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || epoch != s.msgEpoch {
		return
	}

	list := make([]Message, 0, len(snap))
	for _, entry := range snap {
		var rec messageRecord
		if err := json.Unmarshal(entry.Record, &rec); err != nil {
			logger.Log.Warn("skip undecodable message", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		list = append(list, Message{
			ID:             entry.Key,
			ConversationID: conversationID,
			SenderID:       rec.SenderID,
			Kind:           rec.Kind,
			Payload:        rec.Payload,
			CreatedAt:      rec.CreatedAt,
		})
	}

	s.view.RenderMessageList(list, s.session.UserID)
}
