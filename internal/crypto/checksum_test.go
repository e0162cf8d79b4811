package crypto

import (
	"errors"
	"testing"

	"github.com/and161185/docsnap/internal/errs"
)

func TestChecksum_Deterministic(t *testing.T) {
	a := Checksum([]byte("[]\n"))
	b := Checksum([]byte("[]\n"))
	c := Checksum([]byte("[ ]\n"))
	if a != b || a == c || len(a) != 64 {
		t.Fatalf("checksum mismatch/len: %q %q %q", a, b, c)
	}
}

func TestVerifyChecksum(t *testing.T) {
	data := []byte(`[{"a": 1}]`)
	if err := VerifyChecksum(data, Checksum(data)); err != nil {
		t.Fatalf("verify own checksum: %v", err)
	}
	err := VerifyChecksum(append(data, '\n'), Checksum(data))
	if !errors.Is(err, errs.ErrChecksumMismatch) {
		t.Fatalf("want ErrChecksumMismatch, got %v", err)
	}
}
