// Command replay runs a recorded "x,y,z" sample file through the shake
// tracker and prints the intensity and level of every sample.
//
// Usage:
//
//	go run ./cmd/replay -profile legacy data/mock/pickup.csv
//	go run ./cmd/genmock -scenario shake -out - | go run ./cmd/replay -t3 5
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/shake-monitor/internal/config"
	"github.com/couchcryptid/shake-monitor/internal/domain"
)

type summary struct {
	samples  int
	rejected int
	levels   map[domain.Level]int
	window   domain.WindowStats
}

func main() {
	profile := flag.String("profile", domain.DefaultProfile, "threshold profile name")
	profilesFile := flag.String("profiles", "", "YAML file with extra threshold profiles")
	t1 := flag.Float64("t1", 0, "override mild threshold (must be > 0)")
	t2 := flag.Float64("t2", 0, "override moderate threshold")
	t3 := flag.Float64("t3", 0, "override strong threshold")
	window := flag.Int("window", 256, "number of recent intensities in the summary statistics")
	flag.Parse()

	// Only flags given on the command line override the profile, so an
	// explicit zero or negative value is rejected rather than ignored.
	overrides := make(map[string]float64)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t1":
			overrides["t1"] = *t1
		case "t2":
			overrides["t2"] = *t2
		case "t3":
			overrides["t3"] = *t3
		}
	})

	th, err := resolveThresholds(*profile, *profilesFile, overrides)
	if err != nil {
		log.Fatal(err)
	}
	tracker, err := domain.NewTracker(th)
	if err != nil {
		log.Fatal(err)
	}

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		in = f
	}

	sum, err := replay(in, os.Stdout, tracker, *window)
	if err != nil {
		log.Fatal(err)
	}
	printSummary(os.Stdout, th, sum)
	if sum.rejected > 0 {
		os.Exit(1)
	}
}

// resolveThresholds looks up profile and applies overrides keyed t1, t2, t3.
func resolveThresholds(profile, profilesFile string, overrides map[string]float64) (domain.Thresholds, error) {
	profiles := domain.BuiltinProfiles()
	if profilesFile != "" {
		extra, err := config.LoadProfiles(profilesFile)
		if err != nil {
			return domain.Thresholds{}, err
		}
		for name, th := range extra {
			profiles[name] = th
		}
	}

	th, ok := profiles[profile]
	if !ok {
		return domain.Thresholds{}, fmt.Errorf("unknown profile %q (have %v)", profile, domain.ProfileNames(profiles))
	}
	if v, ok := overrides["t1"]; ok {
		th.T1 = v
	}
	if v, ok := overrides["t2"]; ok {
		th.T2 = v
	}
	if v, ok := overrides["t3"]; ok {
		th.T3 = v
	}
	return th, th.Validate()
}

// replay feeds every sample line of r through one tracker session and writes
// a row per line to w. Invalid samples are reported and leave the state as is.
func replay(r io.Reader, w io.Writer, tracker *domain.Tracker, windowSize int) (summary, error) {
	sum := summary{levels: make(map[domain.Level]int)}
	win := domain.NewIntensityWindow(windowSize)
	state := tracker.Initialize()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tMAGNITUDE\tINTENSITY\tLEVEL")

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		sample, err := domain.ParseSampleLine(sc.Text())
		if errors.Is(err, domain.ErrSkipLine) {
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", lineNo, err)
		}

		next, res, err := tracker.Update(state, sample)
		if err != nil {
			sum.rejected++
			fmt.Fprintf(tw, "%d\t-\t-\trejected: %v\n", lineNo, err)
			continue
		}
		state = next
		sum.samples++
		sum.levels[res.Level]++
		win.Add(res.Intensity)
		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\n", lineNo, res.Magnitude, domain.FormatIntensity(res.Intensity), res.Level)
	}
	if err := sc.Err(); err != nil {
		return sum, err
	}
	sum.window = win.Stats()
	return sum, tw.Flush()
}

func printSummary(w io.Writer, th domain.Thresholds, sum summary) {
	fmt.Fprintf(w, "\nthresholds t1=%g t2=%g t3=%g\n", th.T1, th.T2, th.T3)
	fmt.Fprintf(w, "samples=%d rejected=%d\n", sum.samples, sum.rejected)
	for _, l := range domain.Levels() {
		fmt.Fprintf(w, "  %-8s %d\n", l, sum.levels[l])
	}
	fmt.Fprintf(w, "intensity mean=%.2f stddev=%.2f p95=%.2f max=%.2f\n",
		sum.window.Mean, sum.window.StdDev, sum.window.P95, sum.window.Max)
}
