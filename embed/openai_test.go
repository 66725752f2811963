package embed

import (
	"testing"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

func TestConvertVector(t *testing.T) {
	vec, err := convertVector([]float64{0.1, -0.2, 0.3}, 3)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(vec) != 3 || vec[1] != float32(-0.2) {
		t.Fatalf("vec = %v", vec)
	}
}

func TestConvertVectorRejectsDimensionMismatch(t *testing.T) {
	if _, err := convertVector([]float64{0.1, 0.2}, 1536); !errors.IsExternalService(err) {
		t.Fatalf("short vector: %v, want external-service error", err)
	}
	if _, err := convertVector(make([]float64, 3072), 1536); !errors.IsExternalService(err) {
		t.Fatalf("long vector: %v, want external-service error", err)
	}
}
