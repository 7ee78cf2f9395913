package datastore

import (
	"testing"

	"github.com/flagshipsdk/flagship-go/ldmodel"
)

func TestUpsertMonotonicity(t *testing.T) {
	s := New()
	applied := s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewDescriptor(3, &ldmodel.Flag{Key: "f1", Version: 3}))
	if !applied {
		t.Fatalf("expected first upsert to apply")
	}
	if applied := s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewDescriptor(2, &ldmodel.Flag{Key: "f1", Version: 2})); applied {
		t.Fatalf("expected lower-version upsert to be rejected")
	}
	if applied := s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewDescriptor(3, &ldmodel.Flag{Key: "f1", Version: 3})); applied {
		t.Fatalf("expected equal-version upsert to be rejected")
	}
	if applied := s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewDescriptor(4, &ldmodel.Flag{Key: "f1", Version: 4})); !applied {
		t.Fatalf("expected higher-version upsert to apply")
	}
	f, ok := s.GetFlag("f1")
	if !ok || f.Version != 4 {
		t.Fatalf("expected stored flag at version 4, got %+v ok=%v", f, ok)
	}
}

func TestTombstoneRejectsOlderUpdate(t *testing.T) {
	s := New()
	s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewTombstone(5))
	applied := s.Upsert(ldmodel.KindFlag, "f1", ldmodel.NewDescriptor(4, &ldmodel.Flag{Key: "f1", Version: 4}))
	if applied {
		t.Fatalf("expected an older update to be rejected even against a tombstone")
	}
	d, ok := s.Get(ldmodel.KindFlag, "f1")
	if !ok || !d.IsTombstone() {
		t.Fatalf("expected tombstone to remain")
	}
}

func TestInitReplacesAllData(t *testing.T) {
	s := New()
	if s.Initialized() {
		t.Fatalf("expected fresh store to be uninitialized")
	}
	s.Init(map[ldmodel.Kind]map[string]ldmodel.Descriptor{
		ldmodel.KindFlag: {"a": ldmodel.NewDescriptor(1, &ldmodel.Flag{Key: "a", Version: 1})},
	})
	if !s.Initialized() {
		t.Fatalf("expected store to be initialized after Init")
	}
	if _, ok := s.GetFlag("a"); !ok {
		t.Fatalf("expected flag a to be present")
	}
	s.Init(map[ldmodel.Kind]map[string]ldmodel.Descriptor{})
	if _, ok := s.GetFlag("a"); ok {
		t.Fatalf("expected Init to fully replace prior data")
	}
}

func TestAllIncludesTombstones(t *testing.T) {
	s := New()
	s.Upsert(ldmodel.KindFlag, "gone", ldmodel.NewTombstone(1))
	all := s.All(ldmodel.KindFlag)
	d, ok := all["gone"]
	if !ok || !d.IsTombstone() {
		t.Fatalf("expected All to include tombstoned entries")
	}
}
