package store

import (
	"testing"
	"time"
)

const conv = "priv_alice_bob"

func pending(id, body string) Message {
	return Message{
		ID:        id,
		From:      "alice",
		To:        "bob",
		Body:      body,
		Type:      TypeText,
		CreatedAt: time.Now(),
		Status:    StatusPending,
		TempID:    id,
	}
}

func inbound(id, body string) Message {
	return Message{
		ID:        id,
		From:      "bob",
		To:        "alice",
		Body:      body,
		Type:      TypeText,
		CreatedAt: time.Now(),
		Status:    StatusSent,
	}
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	l := NewLog()

	if !l.Append(conv, inbound("m1", "hi")) {
		t.Fatalf("first append rejected")
	}
	if l.Append(conv, inbound("m1", "hi again")) {
		t.Fatalf("duplicate append accepted")
	}
	if got := l.Len(conv); got != 1 {
		t.Fatalf("log length = %d, want 1", got)
	}
	if msgs := l.Query(conv); msgs[0].Body != "hi" {
		t.Fatalf("duplicate overwrote body: %q", msgs[0].Body)
	}
}

func TestUpdateByTempIDReconciles(t *testing.T) {
	l := NewLog()
	l.Append(conv, pending("t1", "hello"))

	if !l.UpdateByTempID(conv, "t1", Patch{ID: "srv1", Status: StatusSent}) {
		t.Fatalf("reconciliation did not apply")
	}

	msgs := l.Query(conv)
	if len(msgs) != 1 {
		t.Fatalf("log length = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != "srv1" || m.Status != StatusSent || m.TempID != "" {
		t.Fatalf("unexpected message after reconcile: %+v", m)
	}

	// A late duplicate ack is absorbed.
	if l.UpdateByTempID(conv, "t1", Patch{ID: "srv1", Status: StatusSent}) {
		t.Fatalf("second ack applied")
	}
}

func TestUpdateByTempIDUnknownIsNoop(t *testing.T) {
	l := NewLog()
	l.Append(conv, inbound("m1", "hi"))

	if l.UpdateByTempID(conv, "ghost", Patch{Status: StatusSent}) {
		t.Fatalf("update applied for unknown temp id")
	}
	if l.Query(conv)[0].Status != StatusSent {
		t.Fatalf("unrelated message mutated")
	}
}

func TestNoTerminalStatusRegression(t *testing.T) {
	l := NewLog()

	l.Append(conv, pending("t1", "hello"))
	l.UpdateByTempID(conv, "t1", Patch{Status: StatusFailed})

	// TempID is cleared on the first transition, so a late ack finds nothing.
	if l.UpdateByTempID(conv, "t1", Patch{ID: "srv1", Status: StatusSent}) {
		t.Fatalf("failed message moved back to sent")
	}
	if got := l.Query(conv)[0].Status; got != StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestMergeHistoryDeduplicates(t *testing.T) {
	l := NewLog()

	// A message arrives live before history finishes loading.
	l.Append(conv, inbound("m2", "live"))

	merged := l.MergeHistory(conv, []Message{
		inbound("m1", "old"),
		inbound("m2", "live"),
		inbound("m3", "older"),
	})
	if merged != 2 {
		t.Fatalf("merged = %d, want 2", merged)
	}

	msgs := l.Query(conv)
	if len(msgs) != 3 {
		t.Fatalf("log length = %d, want 3", len(msgs))
	}
	// The live entry keeps its original position.
	if msgs[0].ID != "m2" {
		t.Fatalf("live message moved: order %v", []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	}
}

func TestReconcileKeepsPosition(t *testing.T) {
	l := NewLog()
	l.Append(conv, inbound("m1", "before"))
	l.Append(conv, pending("t1", "mine"))
	l.Append(conv, inbound("m2", "after"))

	l.UpdateByTempID(conv, "t1", Patch{ID: "srv9", Status: StatusSent})

	msgs := l.Query(conv)
	if msgs[1].ID != "srv9" {
		t.Fatalf("reconciled message not at original position: %v",
			[]string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	l := NewLog()
	l.Append("priv_alice_bob", inbound("m1", "to bob"))
	l.Append("priv_alice_carol", inbound("m1", "to carol"))

	if got := l.Len("priv_alice_bob"); got != 1 {
		t.Fatalf("bob conversation length = %d", got)
	}
	if got := l.Query("priv_alice_carol")[0].Body; got != "to carol" {
		t.Fatalf("carol conversation body = %q", got)
	}
	if msgs := l.Query("priv_alice_dave"); msgs != nil {
		t.Fatalf("unknown conversation returned %v", msgs)
	}
}
