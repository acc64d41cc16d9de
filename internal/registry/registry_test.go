package registry

import (
	"testing"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/process"
)

func TestInsertRejectsDuplicateName(t *testing.T) {
	r := New()
	cfg := process.Config{Name: "s1", Script: "/bin/true"}
	if _, err := r.Insert(cfg); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := r.Insert(cfg)
	if err == nil {
		t.Fatal("expected AlreadyExists on duplicate name")
	}
	if e, ok := err.(*adasaerr.Error); !ok || e.Kind != adasaerr.AlreadyExists {
		t.Fatalf("got %v (%T), want AlreadyExists", err, err)
	}
}

func TestGetNotFound(t *testing.T) {
	r := New()
	if _, err := r.Get(ID(42)); err == nil {
		t.Fatal("expected NotFound")
	}
}

func TestFindReplicasOrderedByID(t *testing.T) {
	r := New()
	for i := 1; i <= 3; i++ {
		cfg := process.Config{Name: "web", Instances: 3}
		cfg.Name = cfg.ReplicaName(i)
		if _, err := r.Insert(cfg); err != nil {
			t.Fatal(err)
		}
	}
	reps := r.FindReplicas("web")
	if len(reps) != 3 {
		t.Fatalf("got %d replicas, want 3", len(reps))
	}
	for i := 1; i < len(reps); i++ {
		if reps[i-1].ID >= reps[i].ID {
			t.Fatalf("replicas not ordered by id: %v", reps)
		}
	}
}

func TestRemoveThenNotFound(t *testing.T) {
	r := New()
	id, err := r.Insert(process.Config{Name: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	r.Remove(id)
	if _, err := r.Get(id); err == nil {
		t.Fatal("expected NotFound after remove")
	}
}

func TestMutateRevalidatesExistence(t *testing.T) {
	r := New()
	id, _ := r.Insert(process.Config{Name: "s1"})
	r.Remove(id)
	err := r.Mutate(id, func(e *Entry) error {
		t.Fatal("fn must not run for a removed entry")
		return nil
	})
	if err == nil {
		t.Fatal("expected NotFound from Mutate on removed entry")
	}
}
