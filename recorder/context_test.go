package recorder

import "testing"

func TestActiveContext_SetAndClear(t *testing.T) {
	ac := NewActiveContext()
	if ac.CurrentTrace() != "" || ac.CurrentSpan() != "" {
		t.Fatal("fresh context is not empty")
	}

	ac.SetCurrent("trace-1", "span-1")
	if ac.CurrentTrace() != "trace-1" || ac.CurrentSpan() != "span-1" {
		t.Errorf("current = %s/%s", ac.CurrentTrace(), ac.CurrentSpan())
	}

	ac.Clear()
	if ac.CurrentTrace() != "" || ac.CurrentSpan() != "" {
		t.Error("Clear() did not reset the context")
	}
}

func TestActiveContext_NestedSpans(t *testing.T) {
	ac := NewActiveContext()
	ac.SetCurrent("trace-1", "")

	ac.push("span-a")
	ac.push("span-b")
	if ac.CurrentSpan() != "span-b" {
		t.Errorf("CurrentSpan() = %s, want span-b", ac.CurrentSpan())
	}

	// Closing the inner span restores its parent as current.
	ac.pop("span-b")
	if ac.CurrentSpan() != "span-a" {
		t.Errorf("CurrentSpan() after pop = %s, want span-a", ac.CurrentSpan())
	}

	ac.pop("span-a")
	if ac.CurrentSpan() != "" {
		t.Errorf("CurrentSpan() = %s, want empty", ac.CurrentSpan())
	}
	if ac.CurrentTrace() != "trace-1" {
		t.Error("popping spans should not clear the trace")
	}
}

func TestActiveContext_OutOfOrderClose(t *testing.T) {
	ac := NewActiveContext()
	ac.push("span-a")
	ac.push("span-b")

	// Closing the outer span first leaves the inner span current.
	ac.pop("span-a")
	if ac.CurrentSpan() != "span-b" {
		t.Errorf("CurrentSpan() = %s, want span-b", ac.CurrentSpan())
	}

	// Popping an unknown span is harmless.
	ac.pop("span-x")
	if ac.CurrentSpan() != "span-b" {
		t.Error("pop of unknown span changed the stack")
	}
}
