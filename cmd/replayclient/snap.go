package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/service/classifier/mock"
)

var (
	snapBPM      int
	snapBeats    int
	snapCycles   int
	snapInterval time.Duration
	snapRealtime bool
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Stream a scripted snap bar followed by an instrument play phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		script := mock.DefaultScript()
		script.BPM = snapBPM
		script.SnapBeats = snapBeats
		script.Interval = snapInterval

		results := scriptedResults(script, time.Now(), snapCycles)
		log.Info().
			Int("bpm", snapBPM).
			Int("frames", len(results)).
			Str("server", serverAddr).
			Msg("Streaming scripted performance")

		conn, err := dial(serverAddr)
		if err != nil {
			return err
		}
		defer conn.Close()

		var pace time.Duration
		if snapRealtime {
			pace = script.Interval
		}
		ack, err := streamResults(context.Background(), conn, results, pace)
		if err != nil {
			return err
		}
		logAck(ack)
		return nil
	},
}

// scriptedResults renders cycles of script as timestamped results.
func scriptedResults(script mock.Script, start time.Time, cycles int) []models.ClassificationResult {
	var out []models.ClassificationResult
	end := script.Cycle() * time.Duration(cycles)
	for elapsed := time.Duration(0); elapsed < end; elapsed += script.Interval {
		out = append(out, models.ClassificationResult{
			Timestamp:       start.Add(elapsed),
			Classifications: script.Classify(elapsed),
		})
	}
	return out
}

func init() {
	snapCmd.Flags().IntVar(&snapBPM, "bpm", 100, "snapped tempo")
	snapCmd.Flags().IntVar(&snapBeats, "beats", 8, "snaps per cycle")
	snapCmd.Flags().IntVar(&snapCycles, "cycles", 1, "script cycles to send")
	snapCmd.Flags().DurationVar(&snapInterval, "interval", 50*time.Millisecond, "frame spacing")
	snapCmd.Flags().BoolVar(&snapRealtime, "realtime", false, "pace frames at the frame spacing")
	rootCmd.AddCommand(snapCmd)
}
