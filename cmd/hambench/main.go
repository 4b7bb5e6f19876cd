// hambench runs identical key/value workloads against this engine and
// a pebble baseline, records per-phase latencies as CSV and renders a
// latency plot.
// Usage: go run ./cmd/hambench -ops 10000 -out bench.csv -plot bench.png
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type phaseResult struct {
	Engine    string
	Operation string
	Ops       int
	Elapsed   time.Duration
	// Samples are cumulative elapsed times at regular intervals, for
	// the plot.
	Samples []time.Duration
}

func (r phaseResult) opLatency() time.Duration {
	if r.Ops == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Ops)
}

func main() {
	ops := flag.Int("ops", 10000, "operations per phase")
	cache := flag.Int("cache", 128, "hamdb page cache capacity")
	out := flag.String("out", "bench.csv", "CSV output path")
	plotPath := flag.String("plot", "", "optional PNG latency plot")
	seed := flag.Int64("seed", 1, "workload RNG seed")
	flag.Parse()

	dir, err := os.MkdirTemp("", "hambench")
	if err != nil {
		fatal(err)
	}
	defer os.RemoveAll(dir)

	// One key set for both engines. The RNG is shared, so each engine
	// draws its own sequence of lookups in the read and mixed phases.
	rng := rand.New(rand.NewSource(*seed))
	keys := makeKeys(*ops)

	var results []phaseResult
	for _, open := range []func() (engine, error){
		func() (engine, error) { return openHam(dir, *cache) },
		func() (engine, error) { return openPebble(dir) },
	} {
		e, err := open()
		if err != nil {
			fatal(err)
		}
		results = append(results, runWorkload(e, rng, keys)...)
		if err := e.Close(); err != nil {
			fatal(err)
		}
	}

	if err := writeCSV(*out, results); err != nil {
		fatal(err)
	}
	if *plotPath != "" {
		if err := renderPlot(*plotPath, results); err != nil {
			fatal(err)
		}
	}

	for _, r := range results {
		fmt.Printf("%-8s %-12s %8d ops  %12v total  %10v/op\n",
			r.Engine, r.Operation, r.Ops, r.Elapsed, r.opLatency())
	}
}

// makeKeys generates ops uuid keys, the workload's shared input.
func makeKeys(ops int) [][]byte {
	keys := make([][]byte, ops)
	for i := range keys {
		id := uuid.New()
		keys[i] = []byte(id.String())
	}
	return keys
}

// runWorkload drives three phases: bulk insert, point reads over the
// inserted keys, and a mixed 90/10 read/insert phase.
func runWorkload(e engine, rng *rand.Rand, keys [][]byte) []phaseResult {
	val := []byte("0123456789abcdef")

	insert := timed(e.Name(), "insert", len(keys), func(i int) error {
		return e.Set(keys[i], val)
	})

	read := timed(e.Name(), "read", len(keys), func(i int) error {
		_, err := e.Get(keys[rng.Intn(len(keys))])
		return err
	})

	mixed := timed(e.Name(), "mixed-90-10", len(keys), func(i int) error {
		if rng.Intn(100) < 90 {
			_, err := e.Get(keys[rng.Intn(len(keys))])
			return err
		}
		return e.Set([]byte(uuid.New().String()), val)
	})

	return []phaseResult{insert, read, mixed}
}

func timed(engineName, op string, ops int, fn func(i int) error) phaseResult {
	const samples = 100
	r := phaseResult{Engine: engineName, Operation: op, Ops: ops}
	every := ops / samples
	if every == 0 {
		every = 1
	}

	start := time.Now()
	for i := 0; i < ops; i++ {
		if err := fn(i); err != nil {
			fatal(fmt.Errorf("%s %s op %d: %w", engineName, op, i, err))
		}
		if (i+1)%every == 0 {
			r.Samples = append(r.Samples, time.Since(start))
		}
	}
	r.Elapsed = time.Since(start)
	return r
}

func writeCSV(path string, results []phaseResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"engine", "operation", "ops", "total_ns", "ns_per_op"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write([]string{
			r.Engine,
			r.Operation,
			strconv.Itoa(r.Ops),
			strconv.FormatInt(r.Elapsed.Nanoseconds(), 10),
			strconv.FormatInt(r.opLatency().Nanoseconds(), 10),
		}); err != nil {
			return err
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "hambench: %v\n", err)
	os.Exit(1)
}
