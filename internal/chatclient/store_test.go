package chatclient

import (
	"fmt"
	"testing"
	"time"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func serverMsg(id, sender, text string, offset time.Duration, isRead bool) Message {
	return Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       sender,
		MessageType:    "text",
		Text:           text,
		IsRead:         isRead,
		CreatedAt:      testBase.Add(offset),
	}
}

func assertOrder(t *testing.T, msgs []Message, ids ...string) {
	t.Helper()
	if len(msgs) != len(ids) {
		t.Fatalf("expected %d messages, got %d", len(ids), len(msgs))
	}
	for i, id := range ids {
		if msgs[i].ID != id {
			t.Fatalf("position %d: expected %q, got %q", i, id, msgs[i].ID)
		}
	}
}

func assertUniqueIDs(t *testing.T, msgs []Message) {
	t.Helper()
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			t.Fatalf("duplicate message id %q", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestLoadSortsAndDeduplicates(t *testing.T) {
	st := NewStore()

	changed := st.Load([]Message{
		serverMsg("m2", "u2", "second", 2*time.Second, false),
		serverMsg("m1", "u1", "first", time.Second, false),
		serverMsg("m2", "u2", "second", 2*time.Second, false),
		serverMsg("m3", "u1", "third", 3*time.Second, false),
	})
	if !changed {
		t.Fatal("first load should report a change")
	}

	msgs := st.Messages()
	assertOrder(t, msgs, "m1", "m2", "m3")
	assertUniqueIDs(t, msgs)
}

func TestLoadDerivesStatusFromReadFlag(t *testing.T) {
	st := NewStore()
	st.Load([]Message{
		serverMsg("m1", "u2", "hi", time.Second, true),
		serverMsg("m2", "u2", "there", 2*time.Second, false),
	})

	msgs := st.Messages()
	if msgs[0].Status != StatusRead {
		t.Fatalf("read message status = %q, want %q", msgs[0].Status, StatusRead)
	}
	if msgs[1].Status != StatusDelivered {
		t.Fatalf("unread message status = %q, want %q", msgs[1].Status, StatusDelivered)
	}
}

func TestLoadKeepsTrackedSentStatus(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", time.Second, false))
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))

	// A poll that still reports is_read=false must not demote sent.
	st.Load([]Message{serverMsg("m1", "u1", "hello", time.Second, false)})
	if got, _ := st.Get("m1"); got.Status != StatusSent {
		t.Fatalf("status after poll = %q, want %q", got.Status, StatusSent)
	}

	// Once the other party reads it, the poll upgrades sent to read.
	st.Load([]Message{serverMsg("m1", "u1", "hello", time.Second, true)})
	if got, _ := st.Get("m1"); got.Status != StatusRead {
		t.Fatalf("status after read = %q, want %q", got.Status, StatusRead)
	}

	// Read is terminal; a stale is_read=false snapshot cannot undo it.
	st.Load([]Message{serverMsg("m1", "u1", "hello", time.Second, false)})
	if got, _ := st.Get("m1"); got.Status != StatusRead {
		t.Fatalf("status after stale poll = %q, want %q", got.Status, StatusRead)
	}
}

func TestLoadUnchangedListLeavesStoreUntouched(t *testing.T) {
	st := NewStore()
	list := []Message{
		serverMsg("m1", "u1", "a", time.Second, false),
		serverMsg("m2", "u2", "b", 2*time.Second, false),
	}
	if !st.Load(list) {
		t.Fatal("first load should report a change")
	}
	if st.Load(list) {
		t.Fatal("identical reload should report no change")
	}
	if !st.Load([]Message{
		serverMsg("m1", "u1", "a", time.Second, false),
		serverMsg("m2", "u2", "edited", 2*time.Second, false),
	}) {
		t.Fatal("text change should report a change")
	}
}

func TestLoadReadFlagChangeUpdatesStatusWithoutChurn(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", time.Second, false))
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))
	st.Load([]Message{
		serverMsg("m1", "u1", "hello", time.Second, false),
		serverMsg("m2", "u2", "reply", 2*time.Second, false),
	})

	// The read receipt flips only is_read, so ids and texts are identical
	// and the list must not report churn. The upgrade still has to show.
	changed := st.Load([]Message{
		serverMsg("m1", "u1", "hello", time.Second, true),
		serverMsg("m2", "u2", "reply", 2*time.Second, true),
	})
	if changed {
		t.Fatal("read-flag-only change should not count as list churn")
	}
	if got, _ := st.Get("m1"); got.Status != StatusRead {
		t.Fatalf("own message status = %q, want %q", got.Status, StatusRead)
	}
	if got, _ := st.Get("m2"); got.Status != StatusRead {
		t.Fatalf("incoming message status = %q, want %q", got.Status, StatusRead)
	}
	if got, _ := st.Get("m1"); !got.IsRead {
		t.Fatal("is_read flag should be refreshed in place")
	}
}

func TestLoadCarriesPendingPlaceholderForward(t *testing.T) {
	st := NewStore()
	st.Load([]Message{serverMsg("m1", "u2", "hi", time.Second, false)})
	st.InsertOptimistic(serverMsg("temp-99", "u1", "pending", 5*time.Second, false))

	// Poll raced ahead of the send: server does not know the message yet.
	st.Load([]Message{serverMsg("m1", "u2", "hi", time.Second, false)})

	msgs := st.Messages()
	assertOrder(t, msgs, "m1", "temp-99")
	if msgs[1].Status != StatusSending {
		t.Fatalf("placeholder status = %q, want %q", msgs[1].Status, StatusSending)
	}
}

func TestReconcileReplacesPlaceholderInPlace(t *testing.T) {
	st := NewStore()
	st.Load([]Message{serverMsg("m1", "u2", "hi", time.Second, false)})
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", 2*time.Second, false))

	st.Reconcile("temp-1", serverMsg("m2", "u1", "hello", 2*time.Second, false))

	msgs := st.Messages()
	assertOrder(t, msgs, "m1", "m2")
	assertUniqueIDs(t, msgs)
	if msgs[1].Status != StatusSent {
		t.Fatalf("confirmed status = %q, want %q", msgs[1].Status, StatusSent)
	}
}

func TestReconcileAfterPollAlreadyInserted(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", time.Second, false))

	// Poll landed first and already carries the server copy.
	st.Load([]Message{serverMsg("m1", "u1", "hello", time.Second, false)})
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))

	msgs := st.Messages()
	assertOrder(t, msgs, "m1")
	if msgs[0].Status != StatusSent {
		t.Fatalf("status = %q, want %q", msgs[0].Status, StatusSent)
	}

	// Running it again must not duplicate anything.
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))
	assertUniqueIDs(t, st.Messages())
	if st.Len() != 1 {
		t.Fatalf("len = %d, want 1", st.Len())
	}
}

func TestReconcileWhenPlaceholderGoneAppends(t *testing.T) {
	st := NewStore()
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))
	assertOrder(t, st.Messages(), "m1")
}

func TestMarkFailedAndRemove(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", time.Second, false))

	st.MarkFailed("temp-1")
	if got, _ := st.Get("temp-1"); got.Status != StatusFailed {
		t.Fatalf("status = %q, want %q", got.Status, StatusFailed)
	}

	if !st.RemoveByID("temp-1") {
		t.Fatal("expected removal")
	}
	if st.RemoveByID("temp-1") {
		t.Fatal("second removal should report absent")
	}
	if st.Len() != 0 {
		t.Fatalf("len = %d, want 0", st.Len())
	}
}

func TestHasRecentFrom(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", 0, false))

	now := testBase.Add(3 * time.Second)
	if !st.HasRecentFrom("hello", "u1", 5*time.Second, now) {
		t.Fatal("identical recent message should match")
	}
	if st.HasRecentFrom("hello", "u2", 5*time.Second, now) {
		t.Fatal("other sender should not match")
	}
	if st.HasRecentFrom("hello!", "u1", 5*time.Second, now) {
		t.Fatal("different text should not match")
	}
	if st.HasRecentFrom("hello", "u1", 5*time.Second, testBase.Add(6*time.Second)) {
		t.Fatal("message outside the window should not match")
	}
}

func TestInsertOptimisticKeepsAscendingOrder(t *testing.T) {
	st := NewStore()
	for i := 5; i >= 1; i-- {
		st.InsertOptimistic(serverMsg(
			fmt.Sprintf("temp-%d", i), "u1", fmt.Sprintf("n%d", i),
			time.Duration(i)*time.Second, false,
		))
	}
	msgs := st.Messages()
	assertOrder(t, msgs, "temp-1", "temp-2", "temp-3", "temp-4", "temp-5")
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestClearDropsTrackedStatuses(t *testing.T) {
	st := NewStore()
	st.InsertOptimistic(serverMsg("temp-1", "u1", "hello", time.Second, false))
	st.Reconcile("temp-1", serverMsg("m1", "u1", "hello", time.Second, false))
	st.Clear()

	if st.Len() != 0 {
		t.Fatalf("len = %d, want 0", st.Len())
	}
	st.Load([]Message{serverMsg("m1", "u1", "hello", time.Second, false)})
	if got, _ := st.Get("m1"); got.Status != StatusDelivered {
		t.Fatalf("status after clear = %q, want %q", got.Status, StatusDelivered)
	}
}
