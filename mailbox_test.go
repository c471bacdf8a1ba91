package meshpipe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMailboxPreservesPostOrder(t *testing.T) {
	m := NewMailbox[string]()
	m.Post([]string{"a", "b"})
	m.Post([]string{"c"})

	select {
	case <-m.Ready():
	default:
		t.Fatalf("mailbox not ready after post")
	}

	want := [][]string{{"a", "b"}, {"c"}}
	if diff := cmp.Diff(want, m.Take()); diff != "" {
		t.Fatalf("unexpected batches (-want +got):\n%s", diff)
	}
	if got := m.Take(); len(got) != 0 {
		t.Fatalf("take did not drain: %v", got)
	}
}

func TestMailboxClosedDropsPosts(t *testing.T) {
	m := NewMailbox[int]()
	m.Post([]int{1})
	m.Close()
	m.Post([]int{2})
	if got := m.Take(); len(got) != 0 {
		t.Fatalf("closed mailbox returned %v", got)
	}
}
