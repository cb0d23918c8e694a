package rssi

import "testing"

func TestRetransmitListStoreReleaseGet(t *testing.T) {
	var l retransmitList

	h := &Header{}
	l.store(5, h)
	if l.count != 1 {
		t.Fatalf("count = %d, want 1", l.count)
	}
	if got := l.get(5); got != h {
		t.Fatalf("get(5) = %p, want %p", got, h)
	}

	l.release(5)
	if l.count != 0 {
		t.Fatalf("count = %d after release, want 0", l.count)
	}
	if got := l.get(5); got != nil {
		t.Fatalf("get(5) = %p after release, want nil", got)
	}
}

func TestRetransmitListReleaseMissingIsNoop(t *testing.T) {
	var l retransmitList
	l.release(9)
	if l.count != 0 {
		t.Fatalf("count = %d, want 0", l.count)
	}
}

func TestRetransmitListClear(t *testing.T) {
	var l retransmitList
	l.store(1, &Header{})
	l.store(200, &Header{})
	l.clear()

	if l.count != 0 {
		t.Fatalf("count = %d after clear, want 0", l.count)
	}
	if l.get(1) != nil || l.get(200) != nil {
		t.Fatal("clear() left entries behind")
	}
}

func TestRetransmitListWrapsAroundSequenceSpace(t *testing.T) {
	var l retransmitList
	l.store(255, &Header{})
	l.store(0, &Header{})

	if l.count != 2 {
		t.Fatalf("count = %d, want 2", l.count)
	}
	if l.get(255) == nil || l.get(0) == nil {
		t.Fatal("wraparound sequence numbers not both stored")
	}
}
