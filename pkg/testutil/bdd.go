package testutil

import "testing"

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}

// Given opens a scenario; When and Then nest inside it so a failure names the full path.
func Given(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Given", desc, fn) }

func When(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "When", desc, fn) }

func Then(t *testing.T, desc string, fn func(t *testing.T)) { t.Helper(); step(t, "Then", desc, fn) }
