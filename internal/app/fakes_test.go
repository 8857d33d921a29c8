package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"parley/client/internal/blob"
	"parley/client/internal/identity"
	"parley/client/internal/realtime"
)

// fakeProvider implements identity.Provider with an in-memory session feed.
type fakeProvider struct {
	mu       sync.Mutex
	current  *identity.Session
	watchers []func(*identity.Session)

	registerErr error
	loginErr    error
}

func (f *fakeProvider) set(sess *identity.Session) {
	f.mu.Lock()
	f.current = sess
	watchers := make([]func(*identity.Session), len(f.watchers))
	copy(watchers, f.watchers)
	f.mu.Unlock()
	for _, fn := range watchers {
		fn(sess)
	}
}

func (f *fakeProvider) Register(ctx context.Context, email, password string) (*identity.Session, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	sess := &identity.Session{UserID: "u-" + email, Email: email, Token: "token-" + email}
	f.set(sess)
	return sess, nil
}

func (f *fakeProvider) Login(ctx context.Context, email, password string) (*identity.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	sess := &identity.Session{UserID: "u-" + email, Email: email, Token: "token-" + email}
	f.set(sess)
	return sess, nil
}

func (f *fakeProvider) Resume(ctx context.Context, token string) (*identity.Session, error) {
	sess := &identity.Session{UserID: "u-resumed", Email: "resumed@example.com", Token: token}
	f.set(sess)
	return sess, nil
}

func (f *fakeProvider) Logout(ctx context.Context) error {
	f.set(nil)
	return nil
}

func (f *fakeProvider) OnSessionChange(fn func(*identity.Session)) {
	f.mu.Lock()
	f.watchers = append(f.watchers, fn)
	current := f.current
	f.mu.Unlock()
	fn(current)
}

// fakeRealtime implements realtime.Store in memory with the store's
// full-snapshot-on-every-change semantics, delivering synchronously.
type fakeRealtime struct {
	mu      sync.Mutex
	lists   map[string][]realtime.Entry
	subs    []*pathSub
	nextKey int

	// appendFn, when set, runs before each append; a non-nil error
	// aborts that append.
	appendFn     func(path string, record any) error
	subscribeErr error
}

type pathSub struct {
	path string
	sub  *fakeSub
}

type fakeSub struct {
	mu       sync.Mutex
	canceled bool
	fn       func(realtime.Snapshot)
}

func (s *fakeSub) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
}

func (s *fakeSub) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *fakeSub) deliver(snap realtime.Snapshot) {
	if !s.isCanceled() {
		s.fn(snap)
	}
}

// deliverStale invokes the callback even though the subscription was
// canceled, simulating a notification already in flight at cancel time.
func (s *fakeSub) deliverStale(snap realtime.Snapshot) {
	s.fn(snap)
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{lists: map[string][]realtime.Entry{}}
}

func (f *fakeRealtime) Append(ctx context.Context, path string, record any) (string, error) {
	if f.appendFn != nil {
		if err := f.appendFn(path, record); err != nil {
			return "", err
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.nextKey++
	key := fmt.Sprintf("key-%d", f.nextKey)
	f.lists[path] = append(f.lists[path], realtime.Entry{Key: key, Record: raw})
	snap := f.snapshotLocked(path)
	subs := f.subsForLocked(path)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(snap)
	}
	return key, nil
}

func (f *fakeRealtime) Subscribe(ctx context.Context, path string, fn func(realtime.Snapshot)) (realtime.Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	sub := &fakeSub{fn: fn}
	f.mu.Lock()
	f.subs = append(f.subs, &pathSub{path: path, sub: sub})
	snap := f.snapshotLocked(path)
	f.mu.Unlock()

	sub.deliver(snap)
	return sub, nil
}

func (f *fakeRealtime) snapshotLocked(path string) realtime.Snapshot {
	snap := make(realtime.Snapshot, len(f.lists[path]))
	copy(snap, f.lists[path])
	return snap
}

func (f *fakeRealtime) subsForLocked(path string) []*fakeSub {
	var out []*fakeSub
	for _, ps := range f.subs {
		if ps.path == path {
			out = append(out, ps.sub)
		}
	}
	return out
}

func (f *fakeRealtime) snapshot(path string) realtime.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(path)
}

// activeSubs counts subscriptions to path that have not been canceled.
func (f *fakeRealtime) activeSubs(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ps := range f.subs {
		if ps.path == path && !ps.sub.isCanceled() {
			n++
		}
	}
	return n
}

func (f *fakeRealtime) lastSub(path string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].path == path {
			return f.subs[i].sub
		}
	}
	return nil
}

func (f *fakeRealtime) messages(path string) []messageRecord {
	var out []messageRecord
	for _, entry := range f.snapshot(path) {
		var rec messageRecord
		if err := json.Unmarshal(entry.Record, &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

// fakeBlob implements blob.Store in memory.
type fakeBlob struct {
	mu      sync.Mutex
	uploads map[string][]byte

	uploadErr error
	refErr    error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{uploads: map[string][]byte{}}
}

func (f *fakeBlob) Upload(ctx context.Context, key string, data []byte) (blob.UploadResult, error) {
	if f.uploadErr != nil {
		return blob.UploadResult{}, f.uploadErr
	}
	f.mu.Lock()
	f.uploads[key] = data
	f.mu.Unlock()
	return blob.UploadResult{Bucket: "test-bucket", Key: key}, nil
}

func (f *fakeBlob) RetrievalReference(ctx context.Context, result blob.UploadResult) (string, error) {
	if f.refErr != nil {
		return "", f.refErr
	}
	return "blob://" + result.Bucket + "/" + result.Key, nil
}

func (f *fakeBlob) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// recordingView records every render command it receives.
type recordingView struct {
	mu        sync.Mutex
	sessions  []*identity.Session
	convLists [][]Conversation
	msgLists  [][]Message
	ownIDs    []string
	notes     []string
}

func (v *recordingView) RenderSession(session *identity.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions = append(v.sessions, session)
}

func (v *recordingView) RenderConversationList(conversations []Conversation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.convLists = append(v.convLists, conversations)
}

func (v *recordingView) RenderMessageList(messages []Message, ownUserID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.msgLists = append(v.msgLists, messages)
	v.ownIDs = append(v.ownIDs, ownUserID)
}

func (v *recordingView) ShowNotification(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = append(v.notes, message)
}

func (v *recordingView) lastConvList() []Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.convLists) == 0 {
		return nil
	}
	return v.convLists[len(v.convLists)-1]
}

func (v *recordingView) lastMsgList() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.msgLists) == 0 {
		return nil
	}
	return v.msgLists[len(v.msgLists)-1]
}

func (v *recordingView) msgRenderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.msgLists)
}

func (v *recordingView) convRenderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.convLists)
}

func (v *recordingView) notifications() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.notes))
	copy(out, v.notes)
	return out
}

type testEngine struct {
	svc      *Service
	provider *fakeProvider
	store    *fakeRealtime
	blobs    *fakeBlob
	view     *recordingView
}

func newTestEngine() *testEngine {
	provider := &fakeProvider{}
	store := newFakeRealtime()
	blobs := newFakeBlob()
	view := &recordingView{}
	svc := New(provider, store, blobs, view)
	svc.Start(context.Background())
	return &testEngine{svc: svc, provider: provider, store: store, blobs: blobs, view: view}
}

// signIn authenticates and returns the session's user id.
func (e *testEngine) signIn(email string) string {
	_ = e.svc.Login(context.Background(), email, "password123")
	return "u-" + email
}

// createAndSelect makes a group and selects it, returning its id.
func (e *testEngine) createAndSelect(name string) string {
	ctx := context.Background()
	_ = e.svc.CreateGroup(ctx, name)
	list := e.view.lastConvList()
	id := list[len(list)-1].ID
	_ = e.svc.Select(ctx, id)
	return id
}
