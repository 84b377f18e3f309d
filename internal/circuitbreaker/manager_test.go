package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	m := NewManager(testLogger())

	first := m.GetOrCreate("user-service", Config{MaxFailures: 2})
	second := m.GetOrCreate("user-service", Config{MaxFailures: 99})

	if first != second {
		t.Fatal("expected the same breaker instance for the same name")
	}
	if first.maxFailures != 2 {
		t.Errorf("config of the first registration must win, got %d", first.maxFailures)
	}
}

func TestGetUnknownName(t *testing.T) {
	m := NewManager(testLogger())
	if m.Get("missing") != nil {
		t.Fatal("expected nil for an unregistered breaker")
	}
}

func TestAllMetrics(t *testing.T) {
	m := NewManager(testLogger())
	m.GetOrCreate("user-service", Config{})
	m.GetOrCreate("cart-service", Config{})

	metrics := m.AllMetrics()
	if len(metrics) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(metrics))
	}
	if _, ok := metrics["user-service"]; !ok {
		t.Error("missing user-service metrics")
	}
}

func TestResetAll(t *testing.T) {
	m := NewManager(testLogger())
	cb := m.GetOrCreate("payment-service", Config{MaxFailures: 1, Timeout: time.Minute})

	cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	m.ResetAll()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after ResetAll, got %s", cb.State())
	}
}
