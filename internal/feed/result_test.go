package feed

import (
	"errors"
	"testing"
)

func TestResult(t *testing.T) {
	ok := Success([]int{1, 2})
	if !ok.OK() || ok.Err() != nil || len(ok.Data()) != 2 {
		t.Fatalf("unexpected success result %+v", ok)
	}

	cause := errors.New("i/o timeout")
	failed := Failure[[]int]("uv: fetch failed", cause)
	if failed.OK() {
		t.Fatal("failure reported ok")
	}
	if failed.Data() != nil {
		t.Fatalf("failure carries data %v", failed.Data())
	}
	if !errors.Is(failed.Err(), cause) {
		t.Fatalf("Err() does not wrap cause: %v", failed.Err())
	}
	if got := failed.Err().Error(); got != "uv: fetch failed: i/o timeout" {
		t.Fatalf("Err() = %q", got)
	}

	bare := Failure[int]("dust: unrecognized response", nil)
	if bare.Err().Error() != "dust: unrecognized response" {
		t.Fatalf("Err() = %q", bare.Err())
	}
}
