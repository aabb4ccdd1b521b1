package main

import (
	"errors"
	"testing"

	"github.com/socialawy/audioformation/internal/pipelineerr"
)

func TestExitCodeFor(t *testing.T) {
	t.Run("gate error maps to 2", func(t *testing.T) {
		err := &pipelineerr.GateError{Gate: "qc_final"}
		if got := exitCodeFor(err); got != 2 {
			t.Fatalf("exitCodeFor(GateError) = %d, want 2", got)
		}
	})

	t.Run("gate error flattened into a plain string maps to 1", func(t *testing.T) {
		err := errors.New("export: " + (&pipelineerr.GateError{Gate: "export"}).Error())
		if got := exitCodeFor(err); got != 1 {
			t.Fatalf("exitCodeFor(plain wrapped string) = %d, want 1 (not errors.As-detectable)", got)
		}
	})

	t.Run("generic error maps to 1", func(t *testing.T) {
		if got := exitCodeFor(errors.New("boom")); got != 1 {
			t.Fatalf("exitCodeFor(generic) = %d, want 1", got)
		}
	})
}
