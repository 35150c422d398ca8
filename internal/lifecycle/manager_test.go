package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	m := New(time.Second, zaptest.NewLogger(t))

	var order []string
	for _, name := range []string{"store", "cache", "http"} {
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	want := []string{"http", "cache", "store"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
}

func TestShutdownJoinsErrorsAndKeepsGoing(t *testing.T) {
	m := New(time.Second, zaptest.NewLogger(t))
	errStore := errors.New("store close failed")

	ran := false
	m.Register("store", func(context.Context) error {
		ran = true
		return nil
	})
	m.Register("cache", func(context.Context) error { return errStore })

	err := m.Shutdown(context.Background())
	if !errors.Is(err, errStore) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ran {
		t.Fatal("expected remaining hooks to run after a failure")
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	m := New(time.Second, nil)
	calls := 0
	m.Register("store", func(context.Context) error {
		calls++
		return nil
	})

	_ = m.Shutdown(context.Background())
	_ = m.Shutdown(context.Background())
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestShutdownAppliesTimeout(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
