package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestRuleStoreInterface verifies at compile time that the stores implement RuleStore
func TestRuleStoreInterface(t *testing.T) {
	var _ RuleStore = (*InMemoryRuleStore)(nil)
	var _ RuleStore = (*PostgresRuleStore)(nil)
}

// TestInMemoryRuleStoreAdd verifies basic Add functionality
func TestInMemoryRuleStoreAdd(t *testing.T) {
	store := NewInMemoryRuleStore()

	rule := testRule("test-1", 1, `Appointment.lead_time_days > 14`)
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	retrieved, err := store.Get("test-1")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}

	if retrieved.ID != rule.ID || retrieved.Name != rule.Name || retrieved.Reason != rule.Reason {
		t.Errorf("Retrieved rule = %+v, want %+v", retrieved, rule)
	}
}

// TestInMemoryRuleStoreAddDuplicate verifies duplicate IDs return ErrRuleExists
func TestInMemoryRuleStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryRuleStore()

	if err := store.Add(testRule("dup", 1, `true`)); err != nil {
		t.Fatalf("First Add() should succeed: %v", err)
	}

	err := store.Add(testRule("dup", 2, `false`))
	if !errors.Is(err, ErrRuleExists) {
		t.Fatalf("Add() error = %v, want ErrRuleExists", err)
	}

	retrieved, _ := store.Get("dup")
	if retrieved.Expression != `true` {
		t.Error("Original rule should not be overwritten")
	}
}

// TestInMemoryRuleStoreGetNotFound verifies missing IDs return ErrRuleNotFound
func TestInMemoryRuleStoreGetNotFound(t *testing.T) {
	store := NewInMemoryRuleStore()

	_, err := store.Get("non-existent")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Get() error = %v, want ErrRuleNotFound", err)
	}
}

// TestInMemoryRuleStoreReturnsCopies verifies callers cannot mutate stored rules
func TestInMemoryRuleStoreReturnsCopies(t *testing.T) {
	store := NewInMemoryRuleStore()
	rule := testRule("copy", 1, `true`)
	store.Add(rule)

	rule.Weight = 99
	got, _ := store.Get("copy")
	got.Reason = "mutated"

	again, _ := store.Get("copy")
	if again.Weight != 10 || again.Reason != "reason copy" {
		t.Errorf("Stored rule was mutated through a caller pointer: %+v", again)
	}
}

// TestInMemoryRuleStoreTimestamps verifies Add sets and Update preserves CreatedAt
func TestInMemoryRuleStoreTimestamps(t *testing.T) {
	store := NewInMemoryRuleStore()

	before := time.Now()
	rule := testRule("ts", 1, `true`)
	store.Add(rule)

	added, _ := store.Get("ts")
	if added.CreatedAt.Before(before) || added.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want >= %v", added.CreatedAt, before)
	}
	if !added.CreatedAt.Equal(added.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should be equal after Add()")
	}

	time.Sleep(5 * time.Millisecond)

	update := testRule("ts", 1, `false`)
	if err := store.Update(update); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	updated, _ := store.Get("ts")
	if !updated.CreatedAt.Equal(added.CreatedAt) {
		t.Errorf("CreatedAt changed on Update(): %v -> %v", added.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(added.UpdatedAt) {
		t.Error("UpdatedAt should advance on Update()")
	}
}

// TestInMemoryRuleStoreUpdateNotFound verifies updating a missing rule fails
func TestInMemoryRuleStoreUpdateNotFound(t *testing.T) {
	store := NewInMemoryRuleStore()

	err := store.Update(testRule("missing", 1, `true`))
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Update() error = %v, want ErrRuleNotFound", err)
	}
}

// TestInMemoryRuleStoreListActive verifies filtering and position ordering
func TestInMemoryRuleStoreListActive(t *testing.T) {
	inactive := testRule("off", 5, `true`)
	inactive.Active = false

	store, err := NewSeededRuleStore([]*Rule{
		testRule("third", 30, `true`),
		inactive,
		testRule("first", 10, `true`),
		testRule("second", 20, `true`),
	})
	if err != nil {
		t.Fatalf("NewSeededRuleStore() failed: %v", err)
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(active) != len(want) {
		t.Fatalf("ListActive() returned %d rules, want %d", len(active), len(want))
	}
	for i, id := range want {
		if active[i].ID != id {
			t.Errorf("ListActive()[%d] = %s, want %s", i, active[i].ID, id)
		}
	}
}

// TestInMemoryRuleStoreListActiveEmpty verifies an empty store lists nothing
func TestInMemoryRuleStoreListActiveEmpty(t *testing.T) {
	store := NewInMemoryRuleStore()

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() on empty store returned %d rules", len(active))
	}
}

// TestInMemoryRuleStoreDelete verifies Delete removes the rule
func TestInMemoryRuleStoreDelete(t *testing.T) {
	store := NewInMemoryRuleStore()
	store.Add(testRule("del", 1, `true`))

	if err := store.Delete("del"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("del"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrRuleNotFound", err)
	}
	if err := store.Delete("del"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("second Delete() error = %v, want ErrRuleNotFound", err)
	}
}

// TestNewSeededRuleStoreRejectsDuplicates verifies seeding enforces unique IDs
func TestNewSeededRuleStoreRejectsDuplicates(t *testing.T) {
	_, err := NewSeededRuleStore([]*Rule{testRule("x", 1, `true`), testRule("x", 2, `true`)})
	if !errors.Is(err, ErrRuleExists) {
		t.Errorf("NewSeededRuleStore() error = %v, want ErrRuleExists", err)
	}
}

// TestInMemoryRuleStoreConcurrentReadWrite verifies the store is safe for concurrent use
func TestInMemoryRuleStoreConcurrentReadWrite(t *testing.T) {
	store := NewInMemoryRuleStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.Add(testRule(fmt.Sprintf("rule-%d", i), i, `true`))
		}(i)
		go func() {
			defer wg.Done()
			store.ListActive()
		}()
	}
	wg.Wait()

	active, _ := store.ListActive()
	if len(active) != 50 {
		t.Errorf("ListActive() returned %d rules after concurrent adds, want 50", len(active))
	}
}
