package chatclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Session binds one contract to its conversation and supervises the message
// store, the polling loop and the send lifecycle while that conversation is
// selected.
//
// The generation counter is the "still current" guard: every switch or close
// bumps it, and async completions (poll results, send confirmations, the
// post-send refresh) compare generations before touching shared state, so a
// late result for an abandoned conversation is discarded instead of leaking
// into the new one.
type Session struct {
	api      *Client
	userID   string
	userName string
	opts     Options
	store    *Store
	sends    sendController
	wg       sync.WaitGroup

	mu      sync.Mutex
	gen     int
	conv    *Conversation
	poll    *poller
	replyTo *ReplyRef
	draft   string
	lastErr string
	closed  bool
}

// NewSession creates a session for the authenticated user. userID must match
// the identity behind the client's token source; it is what optimistic
// placeholders and the duplicate-submission guard key on.
func NewSession(api *Client, userID, userName string, opts Options) *Session {
	return &Session{
		api:      api,
		userID:   userID,
		userName: userName,
		opts:     opts.withDefaults(),
		store:    NewStore(),
	}
}

// Open selects the conversation bound to contractID. Any previous
// conversation's polling is stopped and its message state cleared first.
// Returns ErrConversationNotFound when the contract has no conversation yet;
// the caller may then CreateConversation explicitly.
func (s *Session) Open(ctx context.Context, contractID string) error {
	gen, err := s.detach()
	if err != nil {
		return err
	}
	s.store.Clear()

	convs, err := s.api.Conversations(ctx)
	if err != nil {
		s.setErr("Failed to load conversations")
		return err
	}

	for i := range convs {
		if convs[i].ContractID == contractID {
			return s.attach(gen, convs[i])
		}
	}
	return ErrConversationNotFound
}

// CreateConversation creates (or fetches, when it already exists) the
// conversation for contractID and selects it. Server-side create is
// idempotent, so racing creates converge on one conversation per contract.
func (s *Session) CreateConversation(ctx context.Context, contractID string) error {
	gen, err := s.detach()
	if err != nil {
		return err
	}
	s.store.Clear()

	conv, err := s.api.CreateConversation(ctx, contractID)
	if err != nil {
		s.setErr("Failed to create conversation")
		return err
	}
	return s.attach(gen, *conv)
}

// detach stops the current conversation's polling and bumps the generation
// so in-flight work for it gets discarded. Returns the new generation.
func (s *Session) detach() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.detachLocked()
	return s.gen, nil
}

func (s *Session) detachLocked() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	s.gen++
	s.conv = nil
	s.replyTo = nil
	s.lastErr = ""
}

func (s *Session) attach(gen int, conv Conversation) error {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	c := conv
	s.conv = &c
	s.poll = startPoller(s.opts.PollSettle, s.opts.PollInterval, func() { s.refresh(gen) })
	s.mu.Unlock()

	// Initial history load; on failure the poll loop retries shortly.
	s.refresh(gen)
	return nil
}

// Close releases the session: polling stops, the pending send safety timer
// is cancelled, and any in-flight results are discarded on arrival. Safe to
// call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.detachLocked()
	s.mu.Unlock()

	s.sends.release()
}

// Send submits a text message. Guards reject silently (no toast for a UX
// guard): nothing is sent when the session has no conversation, a send is
// already in flight, the minimum inter-send interval has not elapsed, the
// trimmed text is empty, or an identical message from this user is younger
// than the dedupe window.
//
// On acceptance the placeholder appears in the store immediately with
// status sending; the network call completes in the background and either
// reconciles it against the server record or marks it failed. Failures are
// reported through Err.
func (s *Session) Send(text string) {
	s.mu.Lock()
	if s.userID == "" {
		s.lastErr = "You must be logged in to send messages"
		s.mu.Unlock()
		return
	}
	if s.closed || s.conv == nil {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	convID := s.conv.ID
	reply := s.replyTo
	s.mu.Unlock()

	now := time.Now()
	if !s.sends.tryAcquire(s.opts.MinSendInterval, now) {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.sends.release()
		return
	}
	if s.store.HasRecentFrom(text, s.userID, s.opts.DedupeWindow, now) {
		s.sends.release()
		return
	}

	s.sends.armSafety(s.opts.SendSafetyTimeout)

	temp := Message{
		ID:             fmt.Sprintf("temp-%d", now.UnixMilli()),
		ConversationID: convID,
		SenderID:       s.userID,
		SenderName:     s.userName,
		MessageType:    "text",
		Text:           text,
		CreatedAt:      now,
		ReplyingTo:     reply,
		Status:         StatusSending,
	}

	// Re-check the generation under the lock before inserting: a switch that
	// landed between the guards above and here has already cleared the
	// store, and a placeholder seeded now would be carried forward forever.
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		s.sends.release()
		return
	}
	s.store.InsertOptimistic(temp)
	s.draft = ""
	s.replyTo = nil
	s.mu.Unlock()

	s.wg.Add(1)
	go s.dispatch(gen, convID, temp)
}

func (s *Session) dispatch(gen int, convID string, temp Message) {
	defer s.wg.Done()

	resp, err := s.api.SendMessage(context.Background(), convID, temp.Text, temp.ReplyingTo)

	// Release regardless of outcome; the safety timer may already have done
	// so, in which case this is a no-op.
	s.sends.release()

	if s.stale(gen) {
		// The user switched conversations mid-send. The message is on the
		// server (or not); the result must not touch the new state.
		return
	}

	if err != nil {
		s.store.MarkFailed(temp.ID)
		s.setErr(sendErrorText(err))
		return
	}

	s.store.Reconcile(temp.ID, *resp)
	s.setErr("")

	// One extra fetch absorbs server-side effects of the send (read
	// receipts, fan-out) that are not in the synchronous response.
	time.AfterFunc(s.opts.PostSendRefresh, func() { s.refresh(gen) })
}

// refresh fetches the message history and merges it into the store. Errors
// are swallowed: a background refresh must never surface as a user error,
// and the next tick simply tries again.
func (s *Session) refresh(gen int) {
	s.mu.Lock()
	if s.closed || s.gen != gen || s.conv == nil {
		s.mu.Unlock()
		return
	}
	convID := s.conv.ID
	s.mu.Unlock()

	msgs, err := s.api.Messages(context.Background(), convID)
	if err != nil {
		return
	}
	if s.stale(gen) {
		return
	}
	s.store.Load(msgs)
}

// Retry handles a failed message: it is removed from the store and its text
// re-seeded into the compose draft. It is never resent automatically; silent
// duplicate sends are worse than asking the user to press send again.
func (s *Session) Retry(messageID string) {
	msg, ok := s.store.Get(messageID)
	if !ok || msg.Status != StatusFailed {
		return
	}
	s.store.RemoveByID(messageID)

	s.mu.Lock()
	s.draft = msg.Text
	s.mu.Unlock()
}

// ClearChat empties the conversation history server-side and reloads.
func (s *Session) ClearChat(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.conv == nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	gen := s.gen
	convID := s.conv.ID
	s.mu.Unlock()

	if err := s.api.ClearChat(ctx, convID); err != nil {
		s.setErr("Failed to clear chat")
		return err
	}
	s.store.Clear()
	s.refresh(gen)
	return nil
}

// SetReply records the quoted message for the next send as a minimal
// snapshot, so the quote stays valid even if the original is cleared later.
func (s *Session) SetReply(messageID string) bool {
	msg, ok := s.store.Get(messageID)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.replyTo = &ReplyRef{ID: msg.ID, Text: msg.Text, SenderName: msg.SenderName}
	s.mu.Unlock()
	return true
}

func (s *Session) ClearReply() {
	s.mu.Lock()
	s.replyTo = nil
	s.mu.Unlock()
}

// Reply returns the current reply target, if any.
func (s *Session) Reply() *ReplyRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyTo
}

// Messages returns the ordered message snapshot for rendering.
func (s *Session) Messages() []Message {
	return s.store.Messages()
}

// Conversation returns the currently selected conversation, or nil.
func (s *Session) Conversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	c := *s.conv
	return &c
}

// Sending reports whether a send attempt is in flight.
func (s *Session) Sending() bool {
	return s.sends.inFlight()
}

// Draft returns the compose input text owned by the session (re-seeded by
// Retry, cleared on an accepted send).
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Err returns the current user-facing error text, empty when none. It is
// cleared by the next successful action.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setErr(text string) {
	s.mu.Lock()
	s.lastErr = text
	s.mu.Unlock()
}

func (s *Session) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.gen != gen
}
