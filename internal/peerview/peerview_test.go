package peerview

import (
	"sync"
	"testing"
	"time"
)

func TestUpdateAndSnapshot(t *testing.T) {
	testCases := []struct {
		Updates  map[string]int64
		Key      string
		Expected int64
	}{
		{
			Updates:  map[string]int64{"alpha": 100},
			Key:      "alpha",
			Expected: 100,
		},
		{
			Updates:  map[string]int64{"alpha": 100, "beta": 200},
			Key:      "beta",
			Expected: 200,
		},
		{
			Updates:  map[string]int64{"alpha": 100},
			Key:      "missing",
			Expected: 0,
		},
	}

	for _, test := range testCases {
		v := New("alpha")
		for peer, cpu := range test.Updates {
			v.Update(peer, cpu)
		}
		snap := v.Snapshot()
		if got := snap[test.Key]; got != test.Expected {
			t.Fatalf("snapshot[%q] = %d, want %d", test.Key, got, test.Expected)
		}
	}
}

func TestUpdateIsLastWriterWins(t *testing.T) {
	v := New("self")
	v.Update("n1", 10)
	v.Update("n1", 20)

	if got := v.Snapshot()["n1"]; got != 20 {
		t.Fatalf("expected last write to win, got %d", got)
	}
}

func TestSelfCPUDefaultsToZero(t *testing.T) {
	v := New("self")
	if got := v.SelfCPU(); got != 0 {
		t.Fatalf("expected 0 for unset self cpu, got %d", got)
	}
	v.Update("self", 50)
	if got := v.SelfCPU(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	v := New("self")
	v.Update("n1", 10)

	snap := v.Snapshot()
	snap["n1"] = 9999

	if got := v.Snapshot()["n1"]; got != 10 {
		t.Fatalf("mutating a snapshot must not affect the PeerView, got %d", got)
	}
}

// TestConcurrentUpdatesAreSerialized exercises the no-tearing invariant:
// every update that returns before a Snapshot call starts must be fully
// visible in that snapshot.
func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	v := New("self")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v.Update("n1", int64(n))
		}(i)
	}
	wg.Wait()

	snap := v.Snapshot()
	if _, ok := snap["n1"]; !ok {
		t.Fatal("expected n1 to be present after concurrent updates")
	}
}

func TestPruneRemovesOnlyStalePeers(t *testing.T) {
	v := New("self")

	clock := time.Unix(1000, 0)
	v.now = func() time.Time { return clock }

	v.Update("stale-peer", 10)

	clock = clock.Add(time.Minute)
	v.now = func() time.Time { return clock }
	v.Update("fresh-peer", 20)

	removed := v.Prune(30 * time.Second)

	if len(removed) != 1 || removed[0] != "stale-peer" {
		t.Fatalf("expected only stale-peer to be pruned, got %v", removed)
	}
	snap := v.Snapshot()
	if _, ok := snap["stale-peer"]; ok {
		t.Fatal("expected stale-peer to be removed from the snapshot")
	}
	if _, ok := snap["fresh-peer"]; !ok {
		t.Fatal("expected fresh-peer to survive Prune")
	}
}

func TestPruneNeverRemovesSelf(t *testing.T) {
	v := New("self")

	clock := time.Unix(1000, 0)
	v.now = func() time.Time { return clock }
	v.Update("self", 5)

	clock = clock.Add(time.Hour)
	v.now = func() time.Time { return clock }

	removed := v.Prune(time.Second)
	if len(removed) != 0 {
		t.Fatalf("expected self to never be pruned, got %v", removed)
	}
	if got := v.SelfCPU(); got != 5 {
		t.Fatalf("expected self's value to survive Prune, got %d", got)
	}
}
