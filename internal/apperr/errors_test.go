package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindAndRecoverable(t *testing.T) {
	if e := New(KindQuery, "bad"); !e.Recoverable {
		t.Error("query errors should be recoverable")
	}
	if e := New(KindIndexUnavailable, "down"); !e.Recoverable {
		t.Error("index-unavailable errors should be recoverable")
	}
	if e := New(KindMaintenance, "rebuild failed"); e.Recoverable {
		t.Error("maintenance errors should not be recoverable")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk io")
	e := Wrap(KindStorage, "index query failed", cause)

	if !errors.Is(e, cause) {
		t.Error("wrapped cause lost")
	}
	if got := e.Error(); got != "storage: index query failed: disk io" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	e := fmt.Errorf("outer: %w", New(KindQuery, "bad operator"))
	if !IsKind(e, KindQuery) {
		t.Error("IsKind missed wrapped error")
	}
	if IsKind(e, KindStorage) {
		t.Error("IsKind matched wrong kind")
	}
	if IsKind(errors.New("plain"), KindQuery) {
		t.Error("IsKind matched plain error")
	}
}
