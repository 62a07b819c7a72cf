package bus

import "testing"

func TestEnqueueLatestWinsOnOverflow(t *testing.T) {
	s := NewSession("sess-1", "127.0.0.1", nil, nil, 2, 0)

	s.Enqueue([]byte("a"))
	s.Enqueue([]byte("b"))
	s.Enqueue([]byte("c")) // queue full at 2; "a" should be dropped

	first := <-s.outbound
	second := <-s.outbound

	if string(first) != "b" || string(second) != "c" {
		t.Errorf("got %q, %q; want %q, %q (oldest dropped, latest wins)", first, second, "b", "c")
	}
}

func TestEnqueueDoesNotBlockWhenFull(t *testing.T) {
	s := NewSession("sess-1", "127.0.0.1", nil, nil, 1, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Enqueue([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	default:
	}
	<-done // would hang if Enqueue ever blocked on a full channel
}
