// Command genmock synthesizes accelerometer sample streams for local testing.
// A scenario is a sequence of phases (rest, walk, shake, ...) played back at a
// fixed sample rate. Samples are written as "x,y,z" lines, or published as
// JSON messages to the source Kafka topic.
//
// Usage:
//
//	go run ./cmd/genmock -scenario pickup -out data/mock/pickup.csv
//	go run ./cmd/genmock -scenario shake -brokers localhost:9092 -topic accelerometer-samples -device phone-1
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

var baseTime = time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC)

// phase is a stretch of one kind of motion.
type phase struct {
	motion   string // rest, walk, shake, drop
	duration time.Duration
}

var scenarios = map[string][]phase{
	"rest": {
		{motion: "rest", duration: 10 * time.Second},
	},
	"pickup": {
		{motion: "rest", duration: 3 * time.Second},
		{motion: "walk", duration: 5 * time.Second},
		{motion: "rest", duration: 2 * time.Second},
	},
	"shake": {
		{motion: "rest", duration: 2 * time.Second},
		{motion: "shake", duration: 4 * time.Second},
		{motion: "rest", duration: 2 * time.Second},
	},
	"drop": {
		{motion: "rest", duration: 2 * time.Second},
		{motion: "drop", duration: 500 * time.Millisecond},
		{motion: "rest", duration: 2 * time.Second},
	},
}

type timedSample struct {
	at     time.Time
	sample domain.Sample
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	scenario := flag.String("scenario", "pickup", "scenario name: rest, pickup, shake, drop")
	rate := flag.Int("rate", 16, "samples per second")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "", "write x,y,z lines to this file (- for stdout)")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers to publish to")
	topic := flag.String("topic", "accelerometer-samples", "Kafka topic to publish to")
	device := flag.String("device", "phone-1", "device id used as message key")
	flag.Parse()

	phases, ok := scenarios[*scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q", *scenario)
	}
	if *out == "" && *brokers == "" {
		flag.Usage()
		return fmt.Errorf("missing output: set -out or -brokers")
	}

	clk := clockwork.NewFakeClockAt(baseTime)
	samples := generate(phases, *rate, rand.New(rand.NewPCG(*seed, *seed)), clk)
	log.Printf("%s: %d samples at %d Hz", *scenario, len(samples), *rate)

	if *out != "" {
		if err := writeLines(*out, samples); err != nil {
			return fmt.Errorf("writing samples: %w", err)
		}
	}
	if *brokers != "" {
		if err := publish(strings.Split(*brokers, ","), *topic, *device, samples); err != nil {
			return fmt.Errorf("publishing samples: %w", err)
		}
		log.Printf("published %d samples to %s", len(samples), *topic)
	}
	return nil
}

// generate plays phases back at rate Hz, advancing clk one sample period per sample.
func generate(phases []phase, rate int, rng *rand.Rand, clk *clockwork.FakeClock) []timedSample {
	if rate <= 0 {
		rate = 1
	}
	period := time.Second / time.Duration(rate)

	var out []timedSample
	var step float64
	for _, ph := range phases {
		n := int(ph.duration / period)
		for i := 0; i < n; i++ {
			out = append(out, timedSample{at: clk.Now(), sample: synthesize(ph.motion, step, rng)})
			clk.Advance(period)
			step++
		}
	}
	return out
}

// synthesize returns one sample of the given motion. The device rests face up,
// so gravity sits on the z axis.
func synthesize(motion string, step float64, rng *rand.Rand) domain.Sample {
	noise := func(scale float64) float64 { return (rng.Float64()*2 - 1) * scale }

	switch motion {
	case "walk":
		bob := 1.8 * math.Sin(step*0.9)
		return domain.Sample{X: noise(0.4), Y: 0.6*math.Cos(step*0.9) + noise(0.2), Z: domain.StandardGravity + bob}
	case "shake":
		swing := 9 * math.Sin(step*2.1)
		return domain.Sample{X: swing + noise(1.5), Y: noise(3), Z: domain.StandardGravity + noise(4)}
	case "drop":
		return domain.Sample{X: noise(0.3), Y: noise(0.3), Z: noise(0.5)}
	default:
		return domain.Sample{X: noise(0.03), Y: noise(0.03), Z: domain.StandardGravity + noise(0.05)}
	}
}

func writeLines(path string, samples []timedSample) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# x,y,z")
	for _, s := range samples {
		fmt.Fprintf(bw, "%.5f,%.5f,%.5f\n", s.sample.X, s.sample.Y, s.sample.Z)
	}
	return bw.Flush()
}

func publish(brokers []string, topic, device string, samples []timedSample) error {
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.Hash{},
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, len(samples))
	for i, s := range samples {
		value, err := domain.EncodeSampleMessage(device, s.sample, s.at, i == 0)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(device), Value: value, Time: s.at})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.WriteMessages(ctx, msgs...)
}
