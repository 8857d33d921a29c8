package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Attachment is an image to upload alongside (or instead of) text.
type Attachment struct {
	Name string
	Data []byte
}

// SendResult reports which branches of a send appended a message, so the
// view knows which inputs to clear. Partial success is a normal outcome.
type SendResult struct {
	ImageSent bool
	TextSent  bool
}

// Send sequences an outgoing message. A call with both text and an
// attachment appends two messages: the image first, then the text, each
// timestamped independently. The two branches fail independently; an
// upload or append error in one never blocks or rolls back the other.
//
// The target conversation is captured at call time: a send that completes
// after a conversation switch still appends to the conversation that was
// active when the call was made.
func (s *Service) Send(ctx context.Context, text string, attachment *Attachment) (SendResult, error) {
	var result SendResult

	s.mu.Lock()
	sess, conversationID := s.session, s.active
	s.mu.Unlock()

	if sess == nil || conversationID == "" {
		return result, nil
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && attachment == nil {
		return result, nil
	}

	path := messagesPath(conversationID)
	var imageErr, textErr error

	if attachment != nil {
		if imageErr = s.sendImage(ctx, path, sess.UserID, attachment); imageErr != nil {
			s.view.ShowNotification(imageErr.Error())
		} else {
			result.ImageSent = true
		}
	}

	if trimmed != "" {
		record := messageRecord{
			Kind:      KindText,
			Payload:   trimmed,
			SenderID:  sess.UserID,
			CreatedAt: s.now().UnixMilli(),
		}
		if _, textErr = s.store.Append(ctx, path, record); textErr != nil {
			s.view.ShowNotification(textErr.Error())
		} else {
			result.TextSent = true
		}
	}

	return result, errors.Join(imageErr, textErr)
}

// sendImage uploads the attachment, obtains its retrieval reference, and
// appends the image message. The blob key mixes the current time with the
// original filename to avoid collisions.
func (s *Service) sendImage(ctx context.Context, path, senderID string, attachment *Attachment) error {
	key := fmt.Sprintf("uploads/%d_%s", s.now().UnixMilli(), attachment.Name)

	uploaded, err := s.blobs.Upload(ctx, key, attachment.Data)
	if err != nil {
		return err
	}
	reference, err := s.blobs.RetrievalReference(ctx, uploaded)
	if err != nil {
		return err
	}

	record := messageRecord{
		Kind:      KindImage,
		Payload:   reference,
		SenderID:  senderID,
		CreatedAt: s.now().UnixMilli(),
	}
	_, err = s.store.Append(ctx, path, record)
	return err
}
