// sparklebake bakes mesh attribute maps for sparkle effects.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gekko3d/sparkle/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "plan":
		cmdPlan(args)
	case "info":
		cmdInfo(args)
	case "bake":
		cmdBake(args)
	case "watch":
		cmdWatch(args)
	case "preview":
		cmdPreview(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sparklebake - mesh to attribute map baker

Usage:
  sparklebake <command> [options]

Commands:
  plan <vertex-count> [-gpu]       Show the square layout for a vertex count
  info <mesh.obj>                  Show mesh attributes and map sizes
  bake <mesh.obj> [-o dir]         Bake position, normal and UV maps to TIFF
  watch <mesh.obj> [-o dir]        Rebake whenever the mesh file changes
  preview <mesh.obj> [-frames n]   Run the particle preview and print stats

Common options:
  -config file   YAML config (default ./sparkle.yaml when present)
  -gpu / -cpu    Force the position map bake path
  -debug         Debug logging
  -log file      Also log to a rotating file

Examples:
  sparklebake plan 1000 -gpu
  sparklebake bake models/bunny.obj -o maps
  sparklebake watch models/bunny.obj -o maps -debug`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parse loads the config for a command and returns its positional args.
func parse(name string, args []string, usage string, minArgs int, extra func(fs *flag.FlagSet)) (*config.Config, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var flags config.Flags
	flags.Register(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(reorder(fs, args))

	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: sparklebake "+usage)
		os.Exit(1)
	}
	cfg, err := config.Load(flags.ConfigPath, &flags)
	if err != nil {
		fail(err)
	}
	return cfg, fs.Args()
}

func cmdPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	gpu := fs.Bool("gpu", false, "Align the width to the 8x8 compute tile")
	fs.Parse(reorder(fs, args))

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sparklebake plan <vertex-count> [-gpu]")
		os.Exit(1)
	}
	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fail(fmt.Errorf("vertex count %q: %w", fs.Arg(0), err))
	}
	report, err := planReport(n, *gpu)
	if err != nil {
		fail(err)
	}
	fmt.Print(report)
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: sparklebake info <mesh.obj>")
		os.Exit(1)
	}
	if err := meshInfo(os.Stdout, fs.Arg(0)); err != nil {
		fail(err)
	}
}

func cmdBake(args []string) {
	cfg, rest := parse("bake", args, "bake <mesh.obj> [-o dir]", 1, nil)

	files, err := runBake(rest[0], cfg)
	if err != nil {
		fail(err)
	}
	for _, f := range files {
		fmt.Println(f)
	}
}

func cmdWatch(args []string) {
	cfg, rest := parse("watch", args, "watch <mesh.obj> [-o dir]", 1, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runWatch(ctx, rest[0], cfg); err != nil {
		fail(err)
	}
}

func cmdPreview(args []string) {
	var frames int
	cfg, rest := parse("preview", args, "preview <mesh.obj> [-frames n]", 1, func(fs *flag.FlagSet) {
		fs.IntVar(&frames, "frames", 60, "Number of frames to simulate")
	})

	stats, err := runPreview(rest[0], cfg, frames)
	if err != nil {
		fail(err)
	}
	fmt.Print(stats)
}

// reorder moves flags in front of positional args so "bake mesh.obj -o x"
// parses like "bake -o x mesh.obj".
func reorder(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := a[1:]
		if name[0] == '-' {
			name = name[1:]
		}
		if f := fs.Lookup(name); f != nil && i+1 < len(args) {
			if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
				continue
			}
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}
