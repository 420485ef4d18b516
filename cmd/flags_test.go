package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestMustGet(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().Bool("json", false, "")
	c.Flags().Int("port", 8080, "")
	c.Flags().String("record", "", "")
	c.Flags().Float64("threshold", 0, "")
	if err := c.Flags().Parse([]string{"--json", "--port", "9000", "--record", "IN", "--threshold", "0.75"}); err != nil {
		t.Fatal(err)
	}

	if !mustGetBool(c, "json") {
		t.Error("json = false, want true")
	}
	if got := mustGetInt(c, "port"); got != 9000 {
		t.Errorf("port = %d, want 9000", got)
	}
	if got := mustGetString(c, "record"); got != "IN" {
		t.Errorf("record = %q, want IN", got)
	}
	if got := mustGetFloat64(c, "threshold"); got != 0.75 {
		t.Errorf("threshold = %v, want 0.75", got)
	}
}

func TestMustGet_PanicsOnUndeclaredOrMistypedFlag(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	c.Flags().String("port", "8080", "")

	tests := []struct {
		name string
		get  func()
	}{
		{"undeclared", func() { mustGetBool(c, "json") }},
		{"wrong type", func() { mustGetInt(c, "port") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.get()
		})
	}
}
