package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfMapsWrappedSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("%w: session s1", ErrNoPeer), KindNoPeer},
		{fmt.Errorf("%w: syncProductOptions after 15s", ErrTimeout), KindTimeout},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{fmt.Errorf("%w: addToCart", ErrEmptyResponse), KindEmptyResponse},
		{fmt.Errorf("%w: peer disconnected", ErrRemote), KindRemoteError},
		{fmt.Errorf("%w: \"bundle\"", ErrInvalidProductType), KindInvalidProductType},
		{ErrMissingPendingProduct, KindMissingPendingProduct},
		{ErrToolNotAllowed, KindToolNotAllowed},
		{fmt.Errorf("%w: group_id is required", ErrValidation), KindValidation},
		{errors.New("boom"), KindInternal},
	}

	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestParseProductType(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"basic", "variant", "customizable", " basic "} {
		if _, err := ParseProductType(raw); err != nil {
			t.Fatalf("ParseProductType(%q) error = %v", raw, err)
		}
	}

	for _, raw := range []string{"", "Basic", "bundle"} {
		_, err := ParseProductType(raw)
		if !errors.Is(err, ErrInvalidProductType) {
			t.Fatalf("ParseProductType(%q) expected ErrInvalidProductType, got %v", raw, err)
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	if m, err := ParseMode("VOICE"); err != nil || m != ModeVoice {
		t.Fatalf("ParseMode(VOICE) = %q, %v", m, err)
	}
	if _, err := ParseMode("video"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFailureCarriesKind(t *testing.T) {
	t.Parallel()

	res := Failure("complete_order", fmt.Errorf("%w: addToCart", ErrEmptyResponse))
	if !res.Failed() {
		t.Fatal("expected failed result")
	}
	if res.Kind != KindEmptyResponse {
		t.Fatalf("unexpected kind: %q", res.Kind)
	}
	if !res.Kind.Retryable() {
		t.Fatal("empty response should be retryable by the user")
	}
	if Success("search_products", "ok").Failed() {
		t.Fatal("success result reported as failed")
	}
}
