package metrics

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func rec(ts float64) Record {
	return Record{Timestamp: ts, Angles: map[string]float64{}}
}

func TestRingSnapshot(t *testing.T) {
	r := NewRing(5)

	if _, ok := r.Latest(); ok {
		t.Error("Latest on an empty ring reported a record")
	}

	for i := 1; i <= 3; i++ {
		r.Write(rec(float64(i)))
	}

	t.Run("partial fill", func(t *testing.T) {
		got := r.Snapshot(0)
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].Timestamp != 1 || got[2].Timestamp != 3 {
			t.Errorf("wrong order: %v ... %v", got[0].Timestamp, got[2].Timestamp)
		}
	})

	t.Run("last n", func(t *testing.T) {
		got := r.Snapshot(2)
		if len(got) != 2 || got[0].Timestamp != 2 || got[1].Timestamp != 3 {
			t.Errorf("Snapshot(2) wrong: %+v", got)
		}
	})

	t.Run("wraparound keeps newest", func(t *testing.T) {
		for i := 4; i <= 8; i++ {
			r.Write(rec(float64(i)))
		}
		got := r.Snapshot(0)
		if len(got) != 5 {
			t.Fatalf("len = %d, want capacity 5", len(got))
		}
		if got[0].Timestamp != 4 || got[4].Timestamp != 8 {
			t.Errorf("wraparound order wrong: %v ... %v", got[0].Timestamp, got[4].Timestamp)
		}
		latest, ok := r.Latest()
		if !ok || latest.Timestamp != 8 {
			t.Errorf("Latest = %v, %v", latest.Timestamp, ok)
		}
	})

	t.Run("n larger than retained", func(t *testing.T) {
		got := r.Snapshot(100)
		if len(got) != 5 {
			t.Errorf("len = %d, want 5", len(got))
		}
	})
}

func TestRingConcurrentReaders(t *testing.T) {
	r := NewRing(64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Write(rec(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = r.Snapshot(16)
			_, _ = r.Latest()
		}
	}()
	wg.Wait()

	if r.Len() != 64 {
		t.Errorf("Len = %d, want 64", r.Len())
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "pose_metrics.json")

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Seeded with an empty record on creation.
	seed, err := fs.Read()
	if err != nil {
		t.Fatalf("Read after seed: %v", err)
	}
	if seed.Persons != 0 || seed.Timestamp == 0 {
		t.Errorf("unexpected seed record: %+v", seed)
	}

	conf := 0.87
	in := Record{
		Timestamp:    123.5,
		Persons:      1,
		FPS:          24.5,
		MeanKPConf:   0.61,
		VisibleRatio: 10.0 / 17.0,
		VisibleCount: 10,
		PoseConf:     &conf,
		Angles:       map[string]float64{"L_upperarm": -12.25},
	}
	if err := fs.Write(in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := fs.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Timestamp != in.Timestamp || out.VisibleCount != 10 {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.PoseConf == nil || *out.PoseConf != conf {
		t.Errorf("pose_conf lost: %+v", out.PoseConf)
	}
	if out.Angles["L_upperarm"] != -12.25 {
		t.Errorf("angles lost: %+v", out.Angles)
	}
}

type failingSink struct{ err error }

func (f failingSink) Write(Record) error { return f.err }

func TestMultiSinkDeliversToAll(t *testing.T) {
	ring := NewRing(4)
	boom := errors.New("boom")

	m := MultiSink{failingSink{boom}, ring}
	if err := m.Write(rec(1)); !errors.Is(err, boom) {
		t.Errorf("expected first error back, got %v", err)
	}
	if ring.Len() != 1 {
		t.Error("later sink did not receive the record after an earlier failure")
	}
}
