package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", ValidationError("width", "must be positive"), KindValidation},
		{"wrapped", fmt.Errorf("handle: %w", RebuildError("ds", base)), KindStaleCacheRebuild},
		{"timeout", TimeoutError(base), KindRenderTimeout},
		{"plain", base, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(RebuildError("ds", base), base) {
		t.Error("RebuildError should unwrap to its cause")
	}
	if msg := ValidationError("bbox", "need %d values", 4).Error(); msg != "bbox: need 4 values" {
		t.Errorf("message: got %q", msg)
	}
}
