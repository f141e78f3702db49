package session

import (
	"testing"
	"time"
)

func TestSignalsFireOnce(t *testing.T) {
	s := New()
	select {
	case <-s.Ready():
		t.Fatalf("ready must not fire before signal")
	default:
	}
	s.SignalReady()
	s.SignalReady() // second signal must be a no-op, not a panic
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatalf("ready signal not observable")
	}
	if !s.IsReady() {
		t.Fatalf("IsReady must report the fired signal")
	}
}

func TestFinalWakesWaiter(t *testing.T) {
	s := New()
	done := make(chan string, 1)
	go func() {
		<-s.FinalReceived()
		text, _ := s.Resolve()
		done <- text
	}()
	s.RecordPartial("中间")
	s.RecordFinal("最终结果")
	select {
	case text := <-done:
		if text != "最终结果" {
			t.Fatalf("waiter saw %q", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("final never woke the waiter")
	}
}

func TestEmptyFinalCountsAsReceived(t *testing.T) {
	s := New()
	s.RecordPartial("leftover")
	s.RecordFinal("")
	select {
	case <-s.FinalReceived():
	default:
		t.Fatalf("empty final must still fire the signal")
	}
	text, fromPartial := s.Resolve()
	if text != "" || fromPartial {
		t.Fatalf("empty final must not substitute the partial, got %q fromPartial=%v", text, fromPartial)
	}
}

func TestPartialSubstitution(t *testing.T) {
	s := New()
	s.RecordPartial("只有中间结果")
	text, fromPartial := s.Resolve()
	if text != "只有中间结果" || !fromPartial {
		t.Fatalf("expected partial substitution, got %q fromPartial=%v", text, fromPartial)
	}
}

func TestChunkCounter(t *testing.T) {
	s := New()
	if got := s.AdvanceChunk(); got != 1 {
		t.Fatalf("first chunk must count 1, got %d", got)
	}
	s.AdvanceChunk()
	if got := s.Chunks(); got != 2 {
		t.Fatalf("expected 2 chunks, got %d", got)
	}
}

func TestOpenFlag(t *testing.T) {
	s := New()
	if s.Open() {
		t.Fatalf("session must start closed")
	}
	s.MarkOpen()
	if !s.Open() {
		t.Fatalf("MarkOpen not visible")
	}
	s.MarkClosed()
	if s.Open() {
		t.Fatalf("MarkClosed not visible")
	}
}

func TestResetRearms(t *testing.T) {
	s := New()
	s.SignalConnected()
	s.SignalReady()
	s.RecordFinal("old")
	s.AdvanceChunk()
	s.MarkOpen()

	s.Reset()

	select {
	case <-s.Connected():
		t.Fatalf("reset must rearm the connected signal")
	case <-s.FinalReceived():
		t.Fatalf("reset must rearm the final signal")
	default:
	}
	if s.Chunks() != 0 || s.Open() {
		t.Fatalf("reset must clear counters and flags")
	}
	if text, _ := s.Resolve(); text != "" {
		t.Fatalf("reset must clear text, got %q", text)
	}
}

func TestStopSignal(t *testing.T) {
	s := New()
	if s.StopRequested() {
		t.Fatalf("stop must not be set initially")
	}
	s.RequestStop()
	if !s.StopRequested() {
		t.Fatalf("stop request not visible")
	}
	select {
	case <-s.Stopping():
	default:
		t.Fatalf("stop channel must be closed after RequestStop")
	}
}
