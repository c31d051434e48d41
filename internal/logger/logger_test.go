package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelsArePrefixed(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debugf("hidden %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn")
	l.Errorf("error")
	l.Criticalf("lost %d items", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("debug line written without debug enabled")
	}
	for _, want := range []string{"[STORAGEHUB-INFO] ", "info 2", "[STORAGEHUB-WARN] ", "[STORAGEHUB-ERROR] ", "[STORAGEHUB-CRITICAL] ", "lost 3 items"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debugf("detail")
	if !strings.Contains(buf.String(), "[STORAGEHUB-DEBUG] detail") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	OrNop(nil).Criticalf("ignored")
	var buf bytes.Buffer
	l := New(&buf, false)
	if OrNop(l) != Logger(l) {
		t.Fatal("OrNop replaced a non-nil logger")
	}
}
