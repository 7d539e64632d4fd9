package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/verikit/memsplit/analysis/callgraph"
	"github.com/verikit/memsplit/analysis/driver"
	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/config"
)

var (
	configPath = flag.String("config", "", "YAML file with analysis options")
	renderPath = flag.String("render", "", "write a call-graph rendering to this path (.dot, .svg or .png)")
	verbosity  = flag.Int("v", 0, "log verbosity override (1 = errors only, 5 = trace)")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] program.yaml\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *verbosity != 0 {
		cfg.LogLevel = *verbosity
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := config.NewLogGroup(cfg)

	sw := newStopwatch()
	prog, err := ir.LoadFile(flag.Arg(0))
	if err != nil {
		log.Errorf("loading program: %v", err)
		os.Exit(1)
	}
	sw.lap("load")

	// Render before the pipeline rewrites the program.
	if *renderPath != "" {
		if err := render(prog, *renderPath); err != nil {
			log.Errorf("rendering call graph: %v", err)
			os.Exit(1)
		}
		log.Infof("call graph written to %s", *renderPath)
	}

	res, err := driver.Run(prog, cfg, log)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	sw.lap("analyze")

	names := make([]string, 0, len(res.Functions))
	for name := range res.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fr := res.Functions[name]
		if fr.Err != nil {
			fmt.Printf("%s: failed: %v\n\n", name, fr.Err)
			continue
		}
		fmt.Printf("%s:\n%s\n", name, fr.Decisions)
	}
	sw.report(log)

	if len(res.Failed()) > 0 {
		os.Exit(1)
	}
}

func render(prog *ir.Program, path string) error {
	g := callgraph.Build(prog)
	if strings.HasSuffix(path, ".dot") {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return g.WriteDot(f)
	}
	format := graphviz.SVG
	if strings.HasSuffix(path, ".png") {
		format = graphviz.PNG
	}
	return g.SaveImage(path, format)
}
