package framebus

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishAssignsIncreasingSequence(t *testing.T) {
	b := New()

	for i := 1; i <= 5; i++ {
		seq := b.Publish(Frame{Data: []byte{byte(i)}})
		if seq != uint64(i) {
			t.Errorf("Publish() seq = %d, want %d", seq, i)
		}
	}

	if got := b.Seq(); got != 5 {
		t.Errorf("Seq() = %d, want 5", got)
	}
}

func TestBus_WaitNextReturnsPublishedFrame(t *testing.T) {
	b := New()
	want := []byte("frame-data")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := b.WaitNext(0)
		if err != nil {
			t.Errorf("WaitNext() error = %v", err)
			return
		}
		if f.Seq != 1 {
			t.Errorf("WaitNext() seq = %d, want 1", f.Seq)
		}
		if !bytes.Equal(f.Data, want) {
			t.Errorf("WaitNext() data = %q, want %q", f.Data, want)
		}
	}()

	// Give the waiter time to block before publishing; a publish racing
	// with the wait must not be lost either way.
	time.Sleep(10 * time.Millisecond)
	b.Publish(Frame{Data: want})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitNext did not return after Publish")
	}
}

func TestBus_WaitNextDoesNotMissPriorPublish(t *testing.T) {
	b := New()
	b.Publish(Frame{Data: []byte("one")})

	// A frame newer than lastSeq already exists, so this must not block.
	f, err := b.WaitNext(0)
	if err != nil {
		t.Fatalf("WaitNext() error = %v", err)
	}
	if f.Seq != 1 {
		t.Errorf("WaitNext() seq = %d, want 1", f.Seq)
	}
}

func TestBus_SlowConsumerSkipsToLatest(t *testing.T) {
	b := New()

	for i := 0; i < 100; i++ {
		b.Publish(Frame{Data: []byte{byte(i)}})
	}

	f, err := b.WaitNext(0)
	if err != nil {
		t.Fatalf("WaitNext() error = %v", err)
	}
	if f.Seq != 100 {
		t.Errorf("WaitNext() seq = %d, want 100 (only the latest frame is retained)", f.Seq)
	}
	if !bytes.Equal(f.Data, []byte{99}) {
		t.Errorf("WaitNext() data = %v, want [99]", f.Data)
	}
}

func TestBus_ConsumersObserveStrictlyIncreasingSequences(t *testing.T) {
	b := New()
	const consumers = 8
	const publishes = 500

	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			for {
				f, err := b.WaitNext(lastSeq)
				if err != nil {
					return
				}
				if f.Seq <= lastSeq {
					t.Errorf("observed seq %d after %d", f.Seq, lastSeq)
					return
				}
				lastSeq = f.Seq
			}
		}()
	}

	for i := 0; i < publishes; i++ {
		b.Publish(Frame{Data: []byte{byte(i)}})
	}
	b.Close()
	wg.Wait()
}

func TestBus_CloseWakesWaiters(t *testing.T) {
	b := New()

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := b.WaitNext(0)
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	b.Close()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrClosed) {
				t.Errorf("WaitNext() error = %v, want ErrClosed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not woken by Close")
		}
	}
}

func TestBus_PublishAfterCloseIsNoOp(t *testing.T) {
	b := New()
	b.Publish(Frame{Data: []byte("one")})
	b.Close()

	if seq := b.Publish(Frame{Data: []byte("two")}); seq != 1 {
		t.Errorf("Publish() after Close seq = %d, want 1", seq)
	}
	if got := b.Seq(); got != 1 {
		t.Errorf("Seq() = %d, want 1", got)
	}
}

func TestBus_Latest(t *testing.T) {
	b := New()

	if _, ok := b.Latest(); ok {
		t.Error("Latest() ok = true on empty bus")
	}

	b.Publish(Frame{Data: []byte("one")})
	f, ok := b.Latest()
	if !ok {
		t.Fatal("Latest() ok = false after publish")
	}
	if f.Seq != 1 {
		t.Errorf("Latest() seq = %d, want 1", f.Seq)
	}
}

func TestBus_DisconnectingConsumersDoesNotAffectOthers(t *testing.T) {
	b := New()

	// Half the consumers stop after the first frame, half read everything.
	const stayers = 4
	var wg sync.WaitGroup
	counts := make([]int, stayers)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.WaitNext(0)
		}()
	}
	for i := 0; i < stayers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			var lastSeq uint64
			for {
				f, err := b.WaitNext(lastSeq)
				if err != nil {
					return
				}
				lastSeq = f.Seq
				counts[slot]++
			}
		}(i)
	}

	for i := 0; i < 50; i++ {
		b.Publish(Frame{Data: []byte{byte(i)}})
		time.Sleep(time.Millisecond)
	}
	b.Close()
	wg.Wait()

	for i, n := range counts {
		if n == 0 {
			t.Errorf("consumer %d received no frames after others disconnected", i)
		}
	}
}
