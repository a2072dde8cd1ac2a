package goadsym

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mrpasztoradam/goadsym/internal/ads"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "local failure",
			err:  &Error{Kind: KindPortClosed, Op: "read_state", Err: ErrPortClosed},
			want: "goadsym: read_state failed: goadsym: port not open",
		},
		{
			name: "remote code",
			err:  &Error{Kind: KindSymbolResolution, Op: "get_handle", Symbol: "Main.x", Code: ads.ErrSymbolNotFound},
			want: `goadsym: get_handle failed for symbol "Main.x": symbol not found (0x0710)`,
		},
		{
			name: "bare",
			err:  &Error{Kind: KindDevice, Op: "read_state"},
			want: "goadsym: read_state failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Kind: KindConnection, Op: "read_by_handle", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}

	remote := &Error{Kind: KindRead, Op: "read_by_handle", Code: ads.ErrInvalidSize}
	if !errors.Is(remote, ads.ErrInvalidSize) {
		t.Error("errors.Is(remote, ads.ErrInvalidSize) = false")
	}
}

func TestPortClosedSentinel(t *testing.T) {
	err := portClosedError("write_by_handle")
	if !errors.Is(err, ErrPortClosed) {
		t.Error("errors.Is(portClosedError, ErrPortClosed) = false")
	}
	if err.Kind != KindPortClosed {
		t.Errorf("Kind = %v, want %v", err.Kind, KindPortClosed)
	}
}

func TestWrapErrorLiftsCode(t *testing.T) {
	cause := fmt.Errorf("exchange failed: %w", ads.ErrTargetPortNotFound)
	err := wrapError(KindConnection, "read_state", cause)
	if err.Code != ads.ErrTargetPortNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ads.ErrTargetPortNotFound)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"connection", &Error{Kind: KindConnection}, true},
		{"port closed", &Error{Kind: KindPortClosed, Err: ErrPortClosed}, false},
		{"symbol not found", &Error{Kind: KindSymbolResolution, Code: ads.ErrSymbolNotFound}, false},
		{"sync timeout", &Error{Kind: KindRead, Code: ads.ErrClientSyncTimeout}, true},
		{"target port not found", &Error{Kind: KindDevice, Code: ads.ErrTargetPortNotFound}, true},
		{"invalid size", &Error{Kind: KindRead, Code: ads.ErrInvalidSize}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := remoteError(KindWrite, "write_by_handle", ads.ErrAccessDenied)
	if got := CodeOf(err); got != ads.ErrAccessDenied {
		t.Errorf("CodeOf() = %v, want %v", got, ads.ErrAccessDenied)
	}
	if got := CodeOf(errors.New("plain")); got != 0 {
		t.Errorf("CodeOf(plain) = %v, want 0", got)
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if got := CodeOf(wrapped); got != ads.ErrAccessDenied {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, ads.ErrAccessDenied)
	}
}

func TestKindOf(t *testing.T) {
	err := remoteError(KindDevice, "read_state", ads.ErrDeviceNotReady)
	if got := KindOf(err); got != KindDevice {
		t.Errorf("KindOf() = %v, want %v", got, KindDevice)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}
}

func TestWithSymbol(t *testing.T) {
	err := withSymbol(remoteError(KindRead, "read_by_handle", ads.ErrInvalidSize), "Main.x")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if e.Symbol != "Main.x" {
		t.Errorf("Symbol = %q, want %q", e.Symbol, "Main.x")
	}

	// An existing annotation is kept.
	err = withSymbol(err, "Other.y")
	if e.Symbol != "Main.x" {
		t.Errorf("Symbol = %q after second annotation, want %q", e.Symbol, "Main.x")
	}
}

func TestKindString(t *testing.T) {
	kinds := []Kind{
		KindUnknown, KindPortClosed, KindConnection, KindAddressResolution,
		KindSymbolResolution, KindRead, KindWrite, KindRelease, KindDevice,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || strings.Contains(s, " ") {
			t.Errorf("Kind(%d).String() = %q, want non-empty label", k, s)
		}
		if seen[s] {
			t.Errorf("Kind(%d).String() = %q, duplicate label", k, s)
		}
		seen[s] = true
	}
}
