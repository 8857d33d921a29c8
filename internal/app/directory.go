package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parley/client/internal/logger"
	"parley/client/internal/realtime"
)

// handleConversations replaces the in-memory conversation list with the
// snapshot's contents, in store order, and re-renders. Snapshots are
// authoritative: nothing from a prior snapshot survives.
func (s *Service) handleConversations(snap realtime.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return
	}

	list := make([]Conversation, 0, len(snap))
	seen := make(map[string]struct{}, len(snap))
	for _, entry := range snap {
		if _, dup := seen[entry.Key]; dup {
			continue
		}
		var rec conversationRecord
		if err := json.Unmarshal(entry.Record, &rec); err != nil {
			logger.Log.Warn("skip undecodable conversation", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		seen[entry.Key] = struct{}{}
		list = append(list, Conversation{
			ID:        entry.Key,
			Name:      rec.Name,
			CreatedBy: rec.CreatedBy,
			Kind:      rec.Kind,
		})
	}

	s.convos = list

	rendered := make([]Conversation, len(list))
	copy(rendered, list)
	s.view.RenderConversationList(rendered)
}

// CreateGroup appends a new group conversation. The store assigns the id;
// rendering happens only through the subscription, never optimistically.
func (s *Service) CreateGroup(ctx context.Context, name string) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return errors.New("not signed in")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		err := errors.New("group name is required")
		s.view.ShowNotification(err.Error())
		return err
	}

	record := conversationRecord{Name: name, CreatedBy: sess.UserID, Kind: KindGroup}
	if _, err := s.store.Append(ctx, conversationsPath, record); err != nil {
		s.view.ShowNotification(err.Error())
		return err
	}
	return nil
}

// Select makes conversationID the active conversation: the previous
// message subscription is canceled before the new one is established, so a
// stale notification can never overwrite the newly selected view.
// Selecting the already-active conversation re-subscribes without error.
func (s *Service) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return errors.New("not signed in")
	}
	known := false
	for _, c := range s.convos {
		if c.ID == conversationID {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		err := fmt.Errorf("unknown conversation %q", conversationID)
		s.view.ShowNotification(err.Error())
		return err
	}

	prev := s.msgSub
	s.msgSub = nil
	s.msgEpoch++
	epoch := s.msgEpoch
	s.active = conversationID
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	sub, err := s.store.Subscribe(ctx, messagesPath(conversationID), func(snap realtime.Snapshot) {
		s.handleMessages(epoch, conversationID, snap)
	})
	if err != nil {
		logger.Log.Error("subscribe messages", zap.String("conversation", conversationID), zap.Error(err))
		s.view.ShowNotification(err.Error())
		s.mu.Lock()
		if s.msgEpoch == epoch {
			s.active = ""
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.msgEpoch != epoch {
		// Superseded by a newer selection or a sign-out while subscribing.
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.msgSub = sub
	s.mu.Unlock()
	return nil
}
