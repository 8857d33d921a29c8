package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"parley/client/internal/app"
	"parley/client/internal/identity"
)

const maxReferenceWidth = 80

// terminal is a line-oriented View: render commands print to out, and the
// Run loop turns stdin lines into engine intents.
type terminal struct {
	out io.Writer

	mu         sync.Mutex
	convos     []app.Conversation
	attachment *app.Attachment
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) RenderSession(session *identity.Session) {
	if session == nil {
		fmt.Fprintln(t.out, "-- signed out; /register or /login to begin")
		return
	}
	fmt.Fprintf(t.out, "-- signed in as %s\n", session.Email)
}

func (t *terminal) RenderConversationList(conversations []app.Conversation) {
	t.mu.Lock()
	t.convos = conversations
	t.mu.Unlock()

	fmt.Fprintln(t.out, "-- conversations:")
	for i, c := range conversations {
		fmt.Fprintf(t.out, "   %d. %s\n", i+1, c.Name)
	}
}

func (t *terminal) RenderMessageList(messages []app.Message, ownUserID string) {
	fmt.Fprintln(t.out, "--")
	for _, m := range messages {
		who := "them"
		if m.SenderID == ownUserID {
			who = "you"
		}
		payload := m.Payload
		if m.Kind == app.KindImage {
			if len(payload) > maxReferenceWidth {
				payload = payload[:maxReferenceWidth] + "..."
			}
			payload = "[image] " + payload
		}
		fmt.Fprintf(t.out, "%5s> %s\n", who, payload)
	}
}

func (t *terminal) ShowNotification(message string) {
	fmt.Fprintf(t.out, "!! %s\n", message)
}

// Run reads intents from stdin until EOF, /quit, or context cancellation.
func (t *terminal) Run(ctx context.Context, svc *app.Service) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "/quit" {
				return nil
			}
			t.handle(ctx, svc, line)
		}
	}
}

func (t *terminal) handle(ctx context.Context, svc *app.Service, line string) {
	if !strings.HasPrefix(strings.TrimSpace(line), "/") {
		t.send(ctx, svc, line)
		return
	}

	fields := strings.Fields(line)
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "/register":
		if len(args) != 2 {
			t.ShowNotification("usage: /register <email> <password>")
			return
		}
		_ = svc.Register(ctx, args[0], args[1])
	case "/login":
		if len(args) != 2 {
			t.ShowNotification("usage: /login <email> <password>")
			return
		}
		_ = svc.Login(ctx, args[0], args[1])
	case "/logout":
		_ = svc.Logout(ctx)
	case "/create":
		_ = svc.CreateGroup(ctx, strings.Join(args, " "))
	case "/select":
		if len(args) != 1 {
			t.ShowNotification("usage: /select <number>")
			return
		}
		id, ok := t.conversationID(args[0])
		if !ok {
			t.ShowNotification("no such conversation")
			return
		}
		_ = svc.Select(ctx, id)
	case "/attach":
		if len(args) != 1 {
			t.ShowNotification("usage: /attach <file>")
			return
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			t.ShowNotification(err.Error())
			return
		}
		t.mu.Lock()
		t.attachment = &app.Attachment{Name: filepath.Base(args[0]), Data: data}
		t.mu.Unlock()
		fmt.Fprintf(t.out, "-- attached %s; next message will carry it\n", filepath.Base(args[0]))
	default:
		t.ShowNotification("unknown command " + cmd)
	}
}

func (t *terminal) send(ctx context.Context, svc *app.Service, text string) {
	t.mu.Lock()
	attachment := t.attachment
	t.mu.Unlock()

	result, _ := svc.Send(ctx, text, attachment)
	if result.ImageSent {
		t.mu.Lock()
		t.attachment = nil
		t.mu.Unlock()
	}
}

// conversationID resolves a 1-based list number (or a raw id) against the
// last rendered conversation list.
func (t *terminal) conversationID(arg string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(t.convos) {
			return "", false
		}
		return t.convos[n-1].ID, true
	}
	for _, c := range t.convos {
		if c.ID == arg {
			return c.ID, true
		}
	}
	return "", false
}
