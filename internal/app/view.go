package app

import "parley/client/internal/identity"

// View is the rendering sink the engine drives. Implementations own all
// presentation concerns: classifying messages as own/other via ownUserID,
// bounding image display, scrolling to the newest entry.
//
// Render calls may arrive from engine-internal goroutines and must not
// call back into the Service synchronously.
type View interface {
	// RenderSession is called on every authentication transition;
	// nil means unauthenticated.
	RenderSession(session *identity.Session)
	RenderConversationList(conversations []Conversation)
	RenderMessageList(messages []Message, ownUserID string)
	ShowNotification(message string)
}
