package chatclient

import (
	"sort"
	"sync"
	"time"
)

// Store holds the ordered, deduplicated message list for the active
// conversation. It is mutated by three independent asynchronous sources
// (initial load, poll ticks, the send lifecycle), so every operation is a
// complete merge under one lock and re-establishes the two invariants:
// ascending created_at order and unique ids.
type Store struct {
	mu       sync.Mutex
	messages []Message
	// statuses remembers delivery states for server-confirmed ids so a poll
	// refresh does not demote a message this session knows it sent.
	statuses map[string]Status
}

func NewStore() *Store {
	return &Store{statuses: make(map[string]Status)}
}

func sortMessages(list []Message) {
	// Stable keeps insertion order for equal timestamps.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// Load merges the full server list into the store and reports whether the
// visible list changed. If the merged result has the same length as the
// current list with identical id and text at every index, only the status
// annotations are refreshed and no change is reported, so observers see a
// stable snapshot.
//
// Local placeholders (optimistic or failed sends) missing from the server
// list are carried forward; a poll that raced ahead of a send must not make
// the user's pending message vanish.
func (st *Store) Load(server []Message) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	merged := make([]Message, 0, len(server)+2)
	seen := make(map[string]bool, len(server))
	for _, m := range server {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if tracked, ok := st.statuses[m.ID]; ok {
			if m.IsRead && canTransition(tracked, StatusRead) {
				m.Status = StatusRead
				st.statuses[m.ID] = StatusRead
			} else {
				m.Status = tracked
			}
		} else {
			m.Status = deriveStatus(m.IsRead)
		}
		merged = append(merged, m)
	}

	for _, m := range st.messages {
		if m.IsLocal() && !seen[m.ID] {
			merged = append(merged, m)
		}
	}

	sortMessages(merged)

	if len(merged) == len(st.messages) {
		same := true
		for i := range merged {
			if merged[i].ID != st.messages[i].ID || merged[i].Text != st.messages[i].Text {
				same = false
				break
			}
		}
		if same {
			// A read receipt changes only is_read, so the id/text compare
			// still says "same". The status annotations must land anyway;
			// they just don't count as list churn.
			for i := range merged {
				st.messages[i].Status = merged[i].Status
				st.messages[i].IsRead = merged[i].IsRead
			}
			return false
		}
	}

	st.messages = merged
	return true
}

// InsertOptimistic appends a local placeholder and re-sorts.
func (st *Store) InsertOptimistic(m Message) {
	if m.Status == "" {
		m.Status = StatusSending
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = append(st.messages, m)
	sortMessages(st.messages)
}

// Reconcile replaces the placeholder with the server-confirmed record. It is
// idempotent against polls that raced ahead of the send response: if the
// server id is already present, the placeholder is simply dropped; if the
// placeholder is already gone, the confirmed record is inserted.
func (st *Store) Reconcile(tempID string, server Message) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.statuses[server.ID] = StatusSent
	delete(st.statuses, tempID)

	existing := st.indexOf(server.ID)
	if existing >= 0 {
		if st.messages[existing].Status != StatusRead {
			st.messages[existing].Status = StatusSent
		}
		st.removeLocked(tempID)
		return
	}

	server.Status = StatusSent
	if i := st.indexOf(tempID); i >= 0 {
		st.messages[i] = server
	} else {
		st.messages = append(st.messages, server)
	}
	sortMessages(st.messages)
}

// MarkFailed flips the placeholder's status in place; the message stays
// visible so the user can retry it.
func (st *Store) MarkFailed(tempID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i := st.indexOf(tempID); i >= 0 {
		st.messages[i].Status = StatusFailed
	}
}

// RemoveByID removes a message and reports whether it was present.
func (st *Store) RemoveByID(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.statuses, id)
	return st.removeLocked(id)
}

// Get returns a copy of the message with the given id.
func (st *Store) Get(id string) (Message, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i := st.indexOf(id); i >= 0 {
		return st.messages[i], true
	}
	return Message{}, false
}

// Messages returns a snapshot of the ordered list.
func (st *Store) Messages() []Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.messages)
}

// Clear drops all messages and tracked statuses.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = nil
	st.statuses = make(map[string]Status)
}

// HasRecentFrom reports whether the sender already has a message with this
// exact text younger than window. Used as the duplicate-submission guard.
func (st *Store) HasRecentFrom(text, senderID string, window time.Duration, now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, m := range st.messages {
		if m.Text == text && m.SenderID == senderID && now.Sub(m.CreatedAt) < window {
			return true
		}
	}
	return false
}

func (st *Store) indexOf(id string) int {
	for i := range st.messages {
		if st.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *Store) removeLocked(id string) bool {
	if i := st.indexOf(id); i >= 0 {
		st.messages = append(st.messages[:i], st.messages[i+1:]...)
		return true
	}
	return false
}
