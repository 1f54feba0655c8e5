package main

import (
	"flag"
	"fmt"
	"strings"
)

// Workload selects which statements a worker goroutine issues per key.
type Workload int

const (
	Selects Workload = iota
	Inserts
	Mixed
)

func (w Workload) String() string {
	switch w {
	case Selects:
		return "selects"
	case Inserts:
		return "inserts"
	case Mixed:
		return "mixed"
	default:
		return "unknown"
	}
}

func parseWorkload(s string) (Workload, error) {
	switch strings.ToLower(s) {
	case "selects":
		return Selects, nil
	case "inserts":
		return Inserts, nil
	case "mixed":
		return Mixed, nil
	default:
		return 0, fmt.Errorf("unknown workload %q (want selects, inserts, or mixed)", s)
	}
}

// Config holds every cqlbench flag.
type Config struct {
	nodeAddresses []string
	keyspace      string

	concurrency int64
	tasks       int64
	batchSize   int64
	workload    Workload
	dontPrepare bool

	profileCPU bool
	profileMem bool
}

func readConfig() Config {
	var hosts, workload string
	var cfg Config

	flag.StringVar(&hosts, "hosts", "127.0.0.1", "comma separated list of contact points")
	flag.StringVar(&cfg.keyspace, "keyspace", "benchks", "keyspace to create and use for the run")
	flag.Int64Var(&cfg.concurrency, "concurrency", 256, "number of worker goroutines")
	flag.Int64Var(&cfg.tasks, "tasks", 1_000_000, "total number of keys to process")
	flag.Int64Var(&cfg.batchSize, "batch-size", 128, "number of keys a worker claims per round")
	flag.StringVar(&workload, "workload", "selects", "selects, inserts, or mixed")
	flag.BoolVar(&cfg.dontPrepare, "dont-prepare", false, "skip keyspace/table setup and select-benchmark seeding")
	flag.BoolVar(&cfg.profileCPU, "profile-cpu", false, "enable CPU profiling for the run")
	flag.BoolVar(&cfg.profileMem, "profile-mem", false, "enable memory profiling for the run")
	flag.Parse()

	cfg.nodeAddresses = strings.Split(hosts, ",")
	w, err := parseWorkload(workload)
	if err != nil {
		panic(err)
	}
	cfg.workload = w
	return cfg
}
