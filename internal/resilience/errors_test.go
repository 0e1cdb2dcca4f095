package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindPermanent},
		{"plain error", errors.New("bad input"), KindPermanent},
		{"transient wrapper", NewTransientError(errors.New("overloaded"), 529), KindTransient},
		{"degraded wrapper", NewDegradedError(errors.New("partial extraction")), KindDegraded},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("503"), 503)), KindTransient},
		{"eris-wrapped transient", eris.Wrap(NewTransientError(errors.New("429"), 429), "tier call"), KindTransient},
		{"rate limit message", errors.New("anthropic: rate limit exceeded"), KindTransient},
		{"connection reset message", errors.New("read tcp: connection reset by peer"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504, 529}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = false, want true", code)
		}
	}
	permanent := []int{200, 301, 400, 401, 403, 404, 422}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if got := KindTransient.String(); got != "transient" {
		t.Errorf("KindTransient.String() = %q", got)
	}
	if got := KindDegraded.String(); got != "degraded" {
		t.Errorf("KindDegraded.String() = %q", got)
	}
	if got := KindPermanent.String(); got != "permanent" {
		t.Errorf("KindPermanent.String() = %q", got)
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	te := NewTransientError(base, 500)
	if !errors.Is(te, base) {
		t.Error("errors.Is should find the wrapped error")
	}
	if te.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", te.Error(), "boom")
	}
}
