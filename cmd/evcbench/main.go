// Command evcbench drives a configurable number of reader goroutines
// against a single writer and reports throughput, mirroring the
// flags-plus-JSON-summary shape of tk-bench but against an in-process
// workload instead of an external binary.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"evc"
	"evc/evcexample"
	"evc/internal/benchstats"
	"evc/internal/raceshim"
)

// Config holds the benchmark's tunable parameters.
type Config struct {
	Readers   int
	Writes    int
	SpinLimit int
	Verbose   bool
}

// Summary is the JSON report printed to stdout on completion.
type Summary struct {
	Readers     int            `json:"readers"`
	Writes      int            `json:"writes"`
	SpinLimit   int            `json:"spin_limit"`
	RaceBuild   bool           `json:"race_build"`
	ElapsedMS   float64        `json:"elapsed_ms"`
	ReaderReads map[string]int64 `json:"reader_reads"`
}

func main() {
	cfg := Config{}

	pflag.IntVar(&cfg.Readers, "readers", 4, "number of concurrent reader goroutines")
	pflag.IntVar(&cfg.Writes, "writes", 100000, "number of Write+Refresh cycles the writer performs")
	pflag.IntVar(&cfg.SpinLimit, "spin", evc.DefaultSpinLimit, "writer spin limit before yielding to the scheduler")
	pflag.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log progress to stderr")

	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: evcbench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Drives readers against a single writer over an evcexample.VecCache[int] and reports a JSON summary.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.New(io.Discard, "evcbench: ", log.LstdFlags)
	if cfg.Verbose {
		logger.SetOutput(os.Stderr)
	}

	summary := run(cfg, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *log.Logger) Summary {
	wh, rh := evc.New[evcexample.VecCache[int], evcexample.VecOp[int]](evcexample.VecCache[int]{})
	wh.SpinLimit = cfg.SpinLimit

	store := benchstats.NewStore()

	stop := make(chan struct{})
	var wg sync.WaitGroup

	factory := rh.Factory()
	for i := 0; i < cfg.Readers; i++ {
		readerKey := fmt.Sprintf("reader-%d", i)
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			h := factory.Handle()
			defer h.Close()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h.View(func(v *evcexample.VecCache[int]) {
					_ = len(v.Values)
				})
				store.Incr(key, 1)
			}
		}(readerKey)
	}

	start := time.Now()
	var applied atomic.Int64
	for i := 0; i < cfg.Writes; i++ {
		if err := wh.Write(evcexample.Push(i)); err != nil {
			logger.Printf("write %d failed: %v", i, err)
			break
		}
		if err := wh.Refresh(); err != nil {
			logger.Printf("refresh %d failed: %v", i, err)
			break
		}
		applied.Add(1)
		if i%10000 == 0 {
			logger.Printf("applied %d/%d", i, cfg.Writes)
		}
	}
	elapsed := time.Since(start)

	close(stop)
	wg.Wait()

	return Summary{
		Readers:     cfg.Readers,
		Writes:      int(applied.Load()),
		SpinLimit:   cfg.SpinLimit,
		RaceBuild:   raceshim.Enabled,
		ElapsedMS:   elapsed.Seconds() * 1000,
		ReaderReads: store.Snapshot(),
	}
}
