package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var (
	tailBrokers string
	tailTopics  []string
	tailSince   time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print tempo and activity events published to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		done := make(chan struct{}, len(tailTopics))
		for _, topic := range tailTopics {
			go func(topic string) {
				consumeTopic(ctx, strings.Split(tailBrokers, ","), topic, tailSince)
				done <- struct{}{}
			}(topic)
		}
		for range tailTopics {
			<-done
		}
		return nil
	},
}

// consumeTopic reads every partition of topic without a consumer group,
// starting at since ago. Events are keyed by session, so a single session
// may live on any partition.
func consumeTopic(ctx context.Context, brokers []string, topic string, since time.Duration) {
	partitions, err := lookupPartitions(ctx, brokers, topic)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Could not list partitions")
		return
	}
	log.Info().Str("topic", topic).Ints("partitions", partitions).Dur("since", since).Msg("Tailing topic")

	var wg sync.WaitGroup
	for _, p := range partitions {
		wg.Add(1)
		go func(partition int) {
			defer wg.Done()
			consumePartition(ctx, brokers, topic, partition, since)
		}(p)
	}
	wg.Wait()
}

// lookupPartitions asks each broker in turn for the topic's partition ids.
func lookupPartitions(ctx context.Context, brokers []string, topic string) ([]int, error) {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if ids := partitionIDs(parts, topic); len(ids) > 0 {
			return ids, nil
		}
		lastErr = fmt.Errorf("topic %q has no partitions", topic)
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, lastErr
}

func partitionIDs(parts []kafka.Partition, topic string) []int {
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		if p.Topic == topic {
			ids = append(ids, p.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

func consumePartition(ctx context.Context, brokers []string, topic string, partition int, since time.Duration) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Int("partition", partition).Msg("Could not seek, reading from current offset")
	}

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Int("partition", partition).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		log.Info().
			Str("topic", topic).
			Int("partition", msg.Partition).
			Str("eventType", headerValue(msg.Headers, "eventType")).
			Str("key", string(msg.Key)).
			RawJSON("event", msg.Value).
			Msg("Event")
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func init() {
	tailCmd.Flags().StringVar(&tailBrokers, "brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	tailCmd.Flags().StringSliceVar(&tailTopics, "topics",
		[]string{"metronome.tempo.estimated", "metronome.activity.interval"}, "topics to tail")
	tailCmd.Flags().DurationVar(&tailSince, "since", time.Hour, "how far back to start")
	rootCmd.AddCommand(tailCmd)
}
