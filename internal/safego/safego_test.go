package safego

import (
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function was not run")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	ran := make(chan struct{})
	Go(func() {
		defer close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("panicking function never ran")
	}

	// A second launch still works; the panic did not take anything down.
	done := make(chan struct{})
	Go(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("launcher broken after recovered panic")
	}
}
