package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/reactivekit/notify/condition"
	"github.com/reactivekit/notify/signal"
)

const (
	iterationsKey = "iterations"
	handlersKey   = "handlers"
	depthKey      = "depth"
	cpuProfileKey = "cpuprofile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure emission and condition propagation throughput",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "Samples per scenario",
				Value: 10_000,
			},
			&cli.UintFlag{
				Name:  handlersKey,
				Usage: "Largest handler count per signal",
				Value: 1_000,
			},
			&cli.UintFlag{
				Name:  depthKey,
				Usage: "Deepest condition chain",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(iterationsKey))
	maxHandlers := int(cmd.Uint(handlersKey))
	maxDepth := int(cmd.Uint(depthKey))

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("taking %s samples per scenario", humanize.Comma(int64(iters)))

	benchmarkEmission(iters, maxHandlers)
	benchmarkAccumulation(iters, maxHandlers)
	benchmarkConditions(iters, maxDepth)
	return nil
}

// sizes returns 1, 10, 100, ... up to max.
func sizes(max int) []int {
	var out []int
	for n := 1; n <= max; n *= 10 {
		out = append(out, n)
	}
	return out
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendTimings(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{{
		name,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	}})
}

func benchmarkEmission(iters, maxHandlers int) {
	tbl := newTable("Plain Emission")

	for _, n := range sizes(maxHandlers) {
		s := signal.New()
		sink := 0
		for i := 0; i < n; i++ {
			s.Connect(func(args ...any) any {
				sink += args[0].(int)
				return nil
			})
		}

		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		for i := 0; i < iters; i++ {
			start := time.Now()
			s.Emit(i)
			tach.AddTime(time.Since(start))
		}
		_ = sink

		appendTimings(tbl, fmt.Sprintf("emit: %s handlers", humanize.Comma(int64(n))), tach)
	}

	tbl.Render()
}

func benchmarkAccumulation(iters, maxHandlers int) {
	tbl := newTable("Accumulated Emission")

	for _, n := range sizes(maxHandlers) {
		s := signal.NewAccumulating(signal.LastValue)
		for i := 0; i < n; i++ {
			s.Connect(func(args ...any) any {
				return args[0].(int) + i
			})
		}

		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		for i := 0; i < iters; i++ {
			start := time.Now()
			s.Emit(i)
			tach.AddTime(time.Since(start))
		}

		appendTimings(tbl, fmt.Sprintf("accumulate: %s handlers", humanize.Comma(int64(n))), tach)
	}

	tbl.Render()
}

func benchmarkConditions(iters, maxDepth int) {
	tbl := newTable("Condition Propagation")

	for _, depth := range sizes(maxDepth) {
		src := condition.NewBool(false)
		gate := condition.NewBool(true)

		leaf := condition.Condition(src)
		for i := 0; i < depth; i++ {
			leaf = leaf.Xor(gate)
		}
		transitions := 0
		leaf.Changed().Connect(func(args ...any) any {
			transitions++
			return nil
		})

		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		state := false
		for i := 0; i < iters; i++ {
			state = !state
			start := time.Now()
			src.SetState(state)
			tach.AddTime(time.Since(start))
		}
		if transitions != iters {
			log.Fatalf("condition chain of depth %d lost transitions: %d of %d", depth, transitions, iters)
		}

		appendTimings(tbl, fmt.Sprintf("propagate: depth %s", humanize.Comma(int64(depth))), tach)
	}

	tbl.Render()
}
