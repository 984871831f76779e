package metadata

import (
	"context"
	"testing"
)

func TestStaticReturnsFixedBlob(t *testing.T) {
	fn := Static([]byte("origin-id"))
	got, err := fn(context.Background())
	if err != nil {
		t.Fatalf("Static: %v", err)
	}
	if string(got) != "origin-id" {
		t.Fatalf("got %q, want %q", got, "origin-id")
	}
}

func TestNoneReturnsEmpty(t *testing.T) {
	fn := None()
	got, err := fn(context.Background())
	if err != nil {
		t.Fatalf("None: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %q, want empty", got)
	}
}
