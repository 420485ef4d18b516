package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the person in an image",
	Long: `Recognize the person in an image against the enrolled gallery.

With --record, a time in or time out event is written to the attendance
ledger when the person is recognized.

Examples:
  face-attendance recognize frame.jpg
  face-attendance recognize frame.jpg --record IN
  face-attendance recognize frame.jpg --threshold 0.8 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("record", "", "Record an attendance event (IN or OUT) for the recognized person")
	recognizeCmd.Flags().Float64("threshold", 0, "Maximum Euclidean distance for a match (0 = MATCH_THRESHOLD)")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

type recognizeResult struct {
	State session.State `json:"state"`
	Event *ledger.Event `json:"event,omitempty"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	var eventType ledger.EventType
	if record := mustGetString(cmd, "record"); record != "" {
		t, err := ledger.ParseEventType(record)
		if err != nil {
			return err
		}
		eventType = t
	}

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := newApp(ctx, appOptions{
		gallery:   true,
		ledger:    eventType != "",
		threshold: mustGetFloat64(cmd, "threshold"),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	k := kiosk.New("cli", a.recognizer, a.ledger)
	defer k.Close()
	state, err := k.Frame(ctx, image)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	result := recognizeResult{State: state}
	if eventType != "" {
		event, err := k.Record(ctx, eventType)
		if err != nil {
			return err
		}
		result.Event = &event
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printState(state)
	if result.Event != nil {
		fmt.Printf("Recorded %s for %s at %s\n",
			result.Event.Type.Label(), result.Event.Name, result.Event.Timestamp.Format(ledger.TimestampLayout))
	}
	return nil
}

func printState(state session.State) {
	switch state.Kind {
	case session.NoFace:
		fmt.Println("No face detected")
	case session.NotAligned:
		fmt.Println("Face detected but not aligned, look straight at the camera")
	case session.UnknownFace:
		fmt.Printf("Unknown face (nearest distance %.4f)\n", state.Distance)
	case session.Recognized:
		fmt.Printf("Recognized %s (distance %.4f)\n", state.Identity, state.Distance)
	}
}
