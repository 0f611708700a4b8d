package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestLintStatementPackage(t *testing.T) {
	violations, err := lint([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 0 {
		var buf bytes.Buffer
		report(&buf, violations)
		t.Fatalf("unexpected violations:\n%s", buf.String())
	}
}

func TestLintReportsMissingAndCopiedMarkers(t *testing.T) {
	violations, err := lint([]string{"testdata/bad/queries.go"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(violations), violations)
	}
	if violations[0].name != "QCopied" || !strings.Contains(violations[0].message, "QGood") {
		t.Fatalf("first violation = %+v", violations[0])
	}
	if violations[1].name != "QUnmarked" || !strings.Contains(violations[1].message, "missing") {
		t.Fatalf("second violation = %+v", violations[1])
	}
}
