package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testPlan = `<TestPlan>
  <TestData unit='V'>1.5</TestData>
  <TestData>a &amp; b</TestData>
</TestPlan>
<TestPlan><TestData>second</TestData></TestPlan>`

func TestRunPrintsValuesPerMessage(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--chunk-size", "7", "--decode"}, strings.NewReader(testPlan), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := strings.Join([]string{
		fmt.Sprintf("message 1 (%d bytes)", len(strings.SplitAfter(testPlan, "</TestPlan>")[0])),
		`parsed TestData: "1.5"`,
		`parsed TestData: "a & b"`,
		"message 2 (48 bytes)",
		`parsed TestData: "second"`,
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRunReadsFileWithAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testplan_76.xml")
	if err := os.WriteFile(path, []byte(testPlan), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	var out bytes.Buffer
	if err := run([]string{"--attrs", "-e", "TestData", path}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, `parsed TestData: "a &amp; b"`) {
		t.Fatalf("raw value missing:\n%s", got)
	}
	if !strings.Contains(got, "  attrs: map[unit:V]") {
		t.Fatalf("attributes missing:\n%s", got)
	}
}

func TestRunRejectsEmptyStartTag(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--start-tag", "<>"}, strings.NewReader(""), &out); err == nil {
		t.Fatalf("expected start tag error")
	}
}
