package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"metronome-ingress-service/internal/models"
)

var (
	replayFile string
	replayPace time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Stream recorded classifier results from a JSON Lines file",
	Long: `Each line is one result:
{"timestamp":"2024-06-12T09:00:00.05Z","classifications":[{"label":"finger_snapping","confidence":0.93}]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(replayFile)
		if err != nil {
			return err
		}
		defer f.Close()

		results, err := readResults(f)
		if err != nil {
			return err
		}

		conn, err := dial(serverAddr)
		if err != nil {
			return err
		}
		defer conn.Close()

		ack, err := streamResults(context.Background(), conn, results, replayPace)
		if err != nil {
			return err
		}
		logAck(ack)
		return nil
	},
}

// readResults parses JSON Lines, skipping blank lines.
func readResults(r io.Reader) ([]models.ClassificationResult, error) {
	var out []models.ClassificationResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if len(text) == 0 {
			continue
		}
		var res models.ClassificationResult
		if err := json.Unmarshal(text, &res); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, res)
	}
	return out, sc.Err()
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "JSON Lines file of classifier results")
	replayCmd.Flags().DurationVar(&replayPace, "pace", 0, "delay between frames")
	_ = replayCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(replayCmd)
}
