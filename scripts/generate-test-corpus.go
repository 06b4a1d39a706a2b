//go:build ignore

// Package main generates a synthetic log corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -lines 100000 -output testdata/bench.log
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numLines = flag.Int("lines", 100000, "Number of log lines to generate")
	output   = flag.String("output", "testdata/bench.log", "Output file")
	seed     = flag.Int64("seed", 42, "Random seed for reproducibility")
	dupRate  = flag.Float64("dup-rate", 0.1, "Fraction of duplicate lines")
)

var levels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

var templates = []string{
	"connection to %s:%d refused",
	"request %s completed in %dms",
	"worker %d picked up job %s",
	"cache miss for key %s, fetching from origin",
	"disk usage at %d%% on volume %s",
	"retrying upload of %s, attempt %d",
	"user %s authenticated from %s",
	"dropped %d messages from queue %s",
}

var hosts = []string{"db-1", "db-2", "api-gw", "cache-3", "worker-7"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var prev string
	for i := 0; i < *numLines; i++ {
		ts = ts.Add(time.Duration(rng.Intn(2000)) * time.Millisecond)

		var line string
		if prev != "" && rng.Float64() < *dupRate {
			line = prev
		} else {
			line = fmt.Sprintf("%s %s %s",
				ts.Format(time.RFC3339),
				levels[rng.Intn(len(levels))],
				renderTemplate(rng))
			prev = line
		}
		fmt.Fprintln(w, line)
	}

	fmt.Printf("wrote %d lines to %s\n", *numLines, *output)
}

func renderTemplate(rng *rand.Rand) string {
	switch tpl := templates[rng.Intn(len(templates))]; tpl {
	case templates[0]:
		return fmt.Sprintf(tpl, hosts[rng.Intn(len(hosts))], 1024+rng.Intn(60000))
	case templates[1]:
		return fmt.Sprintf(tpl, randID(rng), rng.Intn(5000))
	case templates[2]:
		return fmt.Sprintf(tpl, rng.Intn(32), randID(rng))
	case templates[3]:
		return fmt.Sprintf(tpl, randID(rng))
	case templates[4]:
		return fmt.Sprintf(tpl, rng.Intn(100), hosts[rng.Intn(len(hosts))])
	case templates[5]:
		return fmt.Sprintf(tpl, randID(rng), 1+rng.Intn(5))
	case templates[6]:
		return fmt.Sprintf(tpl, randID(rng), hosts[rng.Intn(len(hosts))])
	default:
		return fmt.Sprintf(templates[7], rng.Intn(1000), randID(rng))
	}
}

func randID(rng *rand.Rand) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = chars[rng.Intn(len(chars))]
	}
	return string(b)
}
