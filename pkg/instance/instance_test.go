package instance

import "testing"

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv("SHOPCORE_INSTANCE_ID", "publisher-7")
	if got := ID(); got != "publisher-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestIDFallsBack(t *testing.T) {
	t.Setenv("SHOPCORE_INSTANCE_ID", "")
	if ID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
