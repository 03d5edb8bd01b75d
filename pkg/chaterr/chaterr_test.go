package chaterr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfAndIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("consume: %w", New(KindBrokerConnection, "dial", cause))

	if got := KindOf(err); got != KindBrokerConnection {
		t.Fatalf("KindOf = %q", got)
	}
	if !errors.Is(err, BrokerConnection) {
		t.Fatal("errors.Is(err, BrokerConnection) = false")
	}
	if errors.Is(err, Persistence) {
		t.Fatal("errors.Is(err, Persistence) = true")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost in chain")
	}
	if want := "dial: broker_connection: connection refused"; err.Error() != "consume: "+want {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf = %q, want unknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("KindOf(nil) = %q, want unknown", got)
	}
}
