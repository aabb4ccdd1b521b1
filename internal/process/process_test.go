package process

import "testing"

func TestIsChapterFile_DistinguishesChapterFromChunk(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"ch01.wav", true},
		{"chapter_one.wav", false},
		{"ch01_000.wav", false},
		{"ch02_011.wav", false},
		{"intro.wav", true},
	}
	for _, c := range cases {
		if got := isChapterFile(c.name); got != c.want {
			t.Errorf("isChapterFile(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestReport_AllSucceeded(t *testing.T) {
	if (Report{}).AllSucceeded() {
		t.Error("empty report should not report all-succeeded")
	}
	if !(Report{TotalFiles: 2, Processed: 2}).AllSucceeded() {
		t.Error("fully processed report should report all-succeeded")
	}
	if (Report{TotalFiles: 2, Processed: 1, Failed: 1}).AllSucceeded() {
		t.Error("partially failed report should not report all-succeeded")
	}
}
