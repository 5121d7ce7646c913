package client

import "testing"

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	q := newOutboundQueue(3)
	for _, typ := range []string{"a", "b", "c"} {
		if dropped, _ := q.push([]byte(typ), typ); dropped {
			t.Fatalf("unexpected drop pushing %s", typ)
		}
	}
	dropped, droppedType := q.push([]byte("d"), "d")
	if !dropped || droppedType != "a" {
		t.Fatalf("expected oldest entry dropped, got dropped=%v type=%q", dropped, droppedType)
	}
	if q.len() != 3 {
		t.Fatalf("expected queue pinned at cap, got %d", q.len())
	}
}

func TestQueueDrainOrder(t *testing.T) {
	q := newOutboundQueue(5)
	for _, typ := range []string{"first", "second", "third"} {
		q.push([]byte(typ), typ)
	}
	entries := q.drain()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].msgType != want {
			t.Fatalf("entry %d: got %q want %q", i, entries[i].msgType, want)
		}
	}
	if q.len() != 0 {
		t.Fatalf("drain must empty the queue, %d left", q.len())
	}
}

func TestQueueRequeuePreservesOrder(t *testing.T) {
	q := newOutboundQueue(5)
	q.push([]byte("later"), "later")
	q.requeue([]pendingFrame{
		{frame: []byte("one"), msgType: "one"},
		{frame: []byte("two"), msgType: "two"},
	})
	entries := q.drain()
	got := []string{entries[0].msgType, entries[1].msgType, entries[2].msgType}
	want := []string{"one", "two", "later"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
