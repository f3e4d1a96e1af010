// ordercheck computes the update and draw order of a systems manifest
// without constructing any system.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/data"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ordercheck <systems.yaml> [-v]")
		os.Exit(1)
	}

	log := zap.NewNop()
	if len(os.Args) > 2 && os.Args[2] == "-v" {
		l, err := zap.NewDevelopment()
		if err == nil {
			log = l
			defer log.Sync()
		}
	}

	table, err := data.LoadSystemTable(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	regs, err := table.Registrations(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	update, draw, err := ecs.OrderRegistrations(regs, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(2)
	}

	fmt.Printf("%d registrations\n", len(regs))
	printPhase("update", update)
	printPhase("draw", draw)
}

func printPhase(phase string, regs []ecs.Registration) {
	fmt.Printf("%s (%d):\n", phase, len(regs))
	for i, r := range regs {
		line := fmt.Sprintf("  %2d. %s", i+1, r.Name)
		if r.Replace != "" {
			line += fmt.Sprintf("  (replaces %s)", r.Replace)
		}
		if r.Flags != 0 {
			line += fmt.Sprintf("  mask=%#x", uint64(r.Flags))
		}
		fmt.Println(line)
	}
}
