package chat

import (
	"strings"
	"testing"
)

func TestTempIDsUniqueUnderBurst(t *testing.T) {
	var gen tempIDGen
	seen := make(map[string]bool, 1000)

	// Far more ids than one millisecond can separate by timestamp alone.
	for i := 0; i < 1000; i++ {
		id := gen.next()
		if !strings.HasPrefix(id, "t_") {
			t.Fatalf("unexpected prefix: %q", id)
		}
		if seen[id] {
			t.Fatalf("temp id %q issued twice", id)
		}
		seen[id] = true
	}
}
