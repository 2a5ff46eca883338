package epidemictransport

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTwoTransportsConverge(t *testing.T) {
	a := New("node-a", "127.0.0.1:19801", []string{"127.0.0.1:19802"})
	b := New("node-b", "127.0.0.1:19802", []string{"127.0.0.1:19801"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventsA, err := a.Events(ctx)
	if err != nil {
		t.Fatalf("a.Events: %v", err)
	}
	eventsB, err := b.Events(ctx)
	if err != nil {
		t.Fatalf("b.Events: %v", err)
	}
	defer a.Shutdown()
	defer b.Shutdown()

	payload, _ := json.Marshal(struct {
		FreeCPU int64 `json:"free_cpu"`
	}{FreeCPU: 1200})
	if err := a.Broadcast(ctx, "free_cpu", payload); err != nil {
		t.Fatalf("a.Broadcast: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-eventsB:
			if ev.Src == "node-a" && ev.Name == "free_cpu" {
				return
			}
		case <-eventsA:
			// drained so emit() never blocks
		case <-deadline:
			t.Fatal("timed out waiting for node-b to learn node-a's free_cpu advertisement")
		}
	}
}

func TestBroadcastIgnoresOtherEventNames(t *testing.T) {
	tr := New("node-a", "127.0.0.1:19901", nil)
	ctx := context.Background()

	if err := tr.Broadcast(ctx, "not_free_cpu", []byte(`{}`)); err != nil {
		t.Fatalf("expected no error for ignored event name, got %v", err)
	}

	if peers := tr.store.Peers(); len(peers) != 0 {
		t.Fatalf("expected no state recorded for an ignored event, got %v", peers)
	}
}
