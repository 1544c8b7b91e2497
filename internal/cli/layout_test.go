package cli

import (
	"testing"

	"github.com/starchart-viz/starchart/pkg/errors"
	"github.com/starchart-viz/starchart/pkg/layout"
)

func TestWriteSceneUnsupportedFormat(t *testing.T) {
	err := writeScene(&layout.Scene{}, "pdf", false, "")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("expected %s error, got %v", errors.ErrCodeUnsupported, err)
	}
}
