package main

import (
	"log"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/protect"
	"github.com/reactivekit/notify/signal"
)

const (
	protectCycles = 1_000_000
	weakHandlers  = 10_000
)

func main() {
	log.Print("Starting GC machinery benchmark, please wait...")
	defer log.Print("Finished GC machinery benchmark")

	benchmarkProtectors()
	benchmarkReclamation()
}

func benchmarkProtectors() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"protector", "cycles", "total", "per cycle"})

	protectors := []struct {
		name string
		p    protect.Protector
	}{
		{"fast", protect.NewFast()},
		{"raising", protect.NewRaising()},
		{"debug", protect.NewDebug(zap.NewNop())},
	}

	obj := new(int)
	for _, tc := range protectors {
		start := time.Now()
		for i := 0; i < protectCycles; i++ {
			tc.p.Protect(obj)
			tc.p.Unprotect(obj)
		}
		elapsed := time.Since(start)
		if tc.p.ActiveProtections() != 0 {
			log.Fatalf("%s protector left %d protections active", tc.name, tc.p.ActiveProtections())
		}

		table.Append([]string{
			tc.name,
			humanize.Comma(int64(protectCycles)),
			elapsed.String(),
			(elapsed / protectCycles).String(),
		})
	}

	table.Render()
}

type payload struct {
	hits int
}

func (p *payload) bump(args ...any) any {
	p.hits++
	return nil
}

func benchmarkReclamation() {
	s := signal.New()
	for i := 0; i < weakHandlers; i++ {
		p := &payload{}
		h, err := bind.Weak(p, (*payload).bump)
		if err != nil {
			log.Fatal(err)
		}
		s.ConnectBinding(h)
	}

	start := time.Now()
	deadline := start.Add(10 * time.Second)
	for s.CountHandlers() > 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
	s.CollectGarbage()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"weak handlers", "invocable after gc", "reclaimed in"})
	table.Append([]string{
		humanize.Comma(int64(weakHandlers)),
		humanize.Comma(int64(s.CountHandlers())),
		time.Since(start).String(),
	})
	table.Render()
}
