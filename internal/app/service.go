// Package app holds the chat client engine: the session controller,
// conversation directory, message stream synchronizer, and send
// coordinator, wired to the identity, realtime store, and blob
// capabilities and driving a View sink.
package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"parley/client/internal/blob"
	"parley/client/internal/identity"
	"parley/client/internal/logger"
	"parley/client/internal/realtime"
)

// Service serializes every handler (store notifications and user intents)
// under one mutex, so each runs to completion relative to the others.
// Shared mutable state is exactly the current session, the conversation
// list, the active-conversation pointer, and the two live subscriptions.
type Service struct {
	identity identity.Provider
	store    realtime.Store
	blobs    blob.Store
	view     View

	now func() time.Time

	mu       sync.Mutex
	session  *identity.Session
	convos   []Conversation
	active   string
	convSub  realtime.Subscription
	msgSub   realtime.Subscription
	msgEpoch uint64
}

func New(provider identity.Provider, store realtime.Store, blobs blob.Store, view View) *Service {
	return &Service{
		identity: provider,
		store:    store,
		blobs:    blobs,
		view:     view,
		now:      time.Now,
	}
}

// Start subscribes once, for the lifetime of the service, to the identity
// provider's session feed. The feed fires immediately with current state.
func (s *Service) Start(ctx context.Context) {
	s.identity.OnSessionChange(func(sess *identity.Session) {
		if sess != nil {
			s.handleSignIn(ctx, sess)
		} else {
			s.handleSignOut()
		}
	})
}

// Register delegates to the identity provider. Failures surface the
// provider's message as a notification and leave state unchanged.
func (s *Service) Register(ctx context.Context, email, password string) error {
	if _, err := s.identity.Register(ctx, email, password); err != nil {
		s.view.ShowNotification(err.Error())
		return err
	}
	return nil
}

// Login delegates to the identity provider.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if _, err := s.identity.Login(ctx, email, password); err != nil {
		s.view.ShowNotification(err.Error())
		return err
	}
	return nil
}

// Resume restores a stored session, if the provider still honors it.
func (s *Service) Resume(ctx context.Context, token string) error {
	if _, err := s.identity.Resume(ctx, token); err != nil {
		s.view.ShowNotification(err.Error())
		return err
	}
	return nil
}

// Logout delegates to the identity provider; teardown happens through the
// session feed.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.identity.Logout(ctx); err != nil {
		s.view.ShowNotification(err.Error())
		return err
	}
	return nil
}

func (s *Service) handleSignIn(ctx context.Context, sess *identity.Session) {
	s.mu.Lock()
	s.session = sess
	prevConv, prevMsg := s.convSub, s.msgSub
	s.convSub, s.msgSub = nil, nil
	s.convos = nil
	s.active = ""
	s.msgEpoch++
	s.mu.Unlock()

	// A sign-in over an existing session replaces both subscriptions.
	if prevMsg != nil {
		prevMsg.Cancel()
	}
	if prevConv != nil {
		prevConv.Cancel()
	}
	s.view.RenderSession(sess)

	sub, err := s.store.Subscribe(ctx, conversationsPath, s.handleConversations)
	if err != nil {
		logger.Log.Error("subscribe conversations", zap.Error(err))
		s.view.ShowNotification(err.Error())
		return
	}

	s.mu.Lock()
	if s.session != sess {
		// Signed out (or re-signed-in) while subscribing.
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.convSub = sub
	s.mu.Unlock()
}

func (s *Service) handleSignOut() {
	s.mu.Lock()
	msgSub, convSub := s.msgSub, s.convSub
	s.msgSub, s.convSub = nil, nil
	s.session = nil
	s.convos = nil
	s.active = ""
	s.msgEpoch++
	s.mu.Unlock()

	if msgSub != nil {
		msgSub.Cancel()
	}
	if convSub != nil {
		convSub.Cancel()
	}
	s.view.RenderSession(nil)
}
