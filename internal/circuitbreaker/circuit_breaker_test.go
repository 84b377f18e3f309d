package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func TestOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{
		Name:        "gateway-test",
		MaxFailures: 3,
		Timeout:     time.Minute,
		MaxRequests: 1,
	}, testLogger())

	failing := func() error { return errors.New("remote down") }

	for i := 0; i < 3; i++ {
		if cb.State() != StateClosed {
			t.Fatalf("expected closed before failure %d, got %s", i+1, cb.State())
		}
		if err := cb.Execute(failing); err == nil {
			t.Fatal("expected failure to propagate")
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open after %d failures, got %s", 3, cb.State())
	}

	if err := cb.Execute(failing); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected ErrCircuitBreakerOpen while open, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{
		Name:        "reset-test",
		MaxFailures: 2,
		Timeout:     time.Minute,
		MaxRequests: 1,
	}, testLogger())

	failing := func() error { return errors.New("boom") }
	ok := func() error { return nil }

	cb.Execute(failing)
	cb.Execute(ok)
	cb.Execute(failing)

	if cb.State() != StateClosed {
		t.Fatalf("non-consecutive failures must not open the breaker, got %s", cb.State())
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	cb := New(Config{
		Name:        "probe-test",
		MaxFailures: 1,
		Timeout:     20 * time.Millisecond,
		MaxRequests: 1,
	}, testLogger())

	cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass through after timeout, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	cb := New(Config{
		Name:        "reopen-test",
		MaxFailures: 1,
		Timeout:     20 * time.Millisecond,
		MaxRequests: 1,
	}, testLogger())

	cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(30 * time.Millisecond)

	cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb := New(Config{
		Name:        "manual-reset",
		MaxFailures: 1,
		Timeout:     time.Minute,
		MaxRequests: 1,
	}, testLogger())

	cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected pass-through after reset, got %v", err)
	}
}

func TestMetricsConsistentUnderConcurrency(t *testing.T) {
	cb := New(Config{
		Name:        "concurrency-test",
		MaxFailures: 1000, // keep it closed for the whole test
		Timeout:     time.Minute,
		MaxRequests: 1,
	}, testLogger())

	const numGoroutines = 50
	const numIterations = 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				cb.Execute(func() error {
					if (id+j)%3 == 0 {
						return errors.New("simulated failure")
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	metrics := cb.Metrics()
	totalRequests := metrics["total_requests"].(int64)
	totalFailures := metrics["total_failures"].(int64)
	totalSuccesses := metrics["total_successes"].(int64)

	if totalRequests != int64(numGoroutines*numIterations) {
		t.Errorf("expected %d requests, got %d", numGoroutines*numIterations, totalRequests)
	}
	if totalRequests != totalFailures+totalSuccesses {
		t.Errorf("inconsistent metrics: requests=%d failures=%d successes=%d",
			totalRequests, totalFailures, totalSuccesses)
	}
}

func TestConfigDefaults(t *testing.T) {
	cb := New(Config{}, testLogger())

	if cb.name != "unnamed" {
		t.Errorf("expected default name, got %q", cb.name)
	}
	if cb.maxFailures != 5 {
		t.Errorf("expected default max failures 5, got %d", cb.maxFailures)
	}
	if cb.timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cb.timeout)
	}
	if cb.maxRequests != 1 {
		t.Errorf("expected default max requests 1, got %d", cb.maxRequests)
	}
}
