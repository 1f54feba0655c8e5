// Command cqlbench drives a configurable insert/select/mixed workload
// against a cluster to measure cqldriver's steady-state throughput and
// per-operation latency.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/profile"

	cqldriver "github.com/kulezi/cqldriver"
)

const insertStmt = "INSERT INTO benchtab (pk, v1, v2) VALUES(?, ?, ?)"
const selectStmt = "SELECT v1, v2 FROM benchtab WHERE pk = ?"
const samples = 20_000

func main() {
	config := readConfig()
	log.Printf("Benchmark configuration: %#v\n", config)

	if config.profileCPU && config.profileMem {
		log.Fatal("select one profile type")
	}
	if config.profileCPU {
		log.Println("Running with CPU profiling")
		defer profile.Start(profile.CPUProfile).Stop()
	}
	if config.profileMem {
		log.Println("Running with memory profiling")
		defer profile.Start(profile.MemProfile).Stop()
	}

	ctx := context.Background()
	cfg := cqldriver.DefaultSessionConfig(config.keyspace, config.nodeAddresses...)
	cfg.Timeout = 30 * time.Second
	cfg.Policy = cqldriver.TokenAware()

	session, err := cqldriver.NewSession(ctx, cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if !config.dontPrepare {
		prepareKeyspaceAndTable(ctx, session, config)
	}
	if config.workload == Selects && !config.dontPrepare {
		prepareSelectsBenchmark(ctx, session, config)
	}

	insertQ, err := session.Prepare(ctx, insertStmt)
	if err != nil {
		log.Fatalf("prepare insert: %v", err)
	}
	selectQ, err := session.Prepare(ctx, selectStmt)
	if err != nil {
		log.Fatalf("prepare select: %v", err)
	}

	var wg sync.WaitGroup
	nextBatchStart := int64(0)

	log.Println("Starting the benchmark")
	startTime := time.Now()

	selectCh := make(chan time.Duration, 2*samples)
	insertCh := make(chan time.Duration, 2*samples)
	for i := int64(0); i < config.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				curBatchStart := atomic.AddInt64(&nextBatchStart, config.batchSize)
				if curBatchStart >= config.tasks {
					return
				}
				curBatchEnd := min(curBatchStart+config.batchSize, config.tasks)

				for pk := curBatchStart; pk < curBatchEnd; pk++ {
					sample := rand.Int63n(config.tasks) < samples
					var start time.Time

					if config.workload == Inserts || config.workload == Mixed {
						if sample {
							start = time.Now()
						}
						insertQ.Bind(0, pk)
						insertQ.Bind(1, 2*pk)
						insertQ.Bind(2, 3*pk)
						if _, err := insertQ.Exec(ctx); err != nil {
							panic(err)
						}
						if sample {
							insertCh <- time.Since(start)
						}
					}

					if config.workload == Selects || config.workload == Mixed {
						if sample {
							start = time.Now()
						}
						selectQ.Bind(0, pk)
						it := selectQ.Iter(ctx)
						var v1, v2 int64
						if err := it.Scan(&v1, &v2); err != nil {
							panic(err)
						}
						it.Close()

						if v1 != 2*pk || v2 != 3*pk {
							panic("bad data")
						}
						if sample {
							selectCh <- time.Since(start)
						}
					}
				}
			}
		}()
	}

	wg.Wait()
	benchTime := time.Since(startTime)

	fmt.Printf("time %d\n", benchTime.Milliseconds())
	printLatencyInfo("select", selectCh)
	printLatencyInfo("insert", insertCh)
	log.Printf("Finished\nBenchmark time: %d ms\n", benchTime.Milliseconds())
}

func printLatencyInfo(name string, ch chan time.Duration) {
	cnt := len(ch)
	for i := 0; i < cnt; i++ {
		fmt.Printf("%s %d\n", name, (<-ch).Nanoseconds())
	}
}

func prepareKeyspaceAndTable(ctx context.Context, session *cqldriver.Session, config Config) {
	if _, err := session.Query("DROP KEYSPACE IF EXISTS " + config.keyspace).Exec(ctx); err != nil {
		panic(err)
	}
	if _, err := session.Query("CREATE KEYSPACE IF NOT EXISTS " + config.keyspace +
		" WITH REPLICATION = {'class' : 'SimpleStrategy', 'replication_factor' : 1}").Exec(ctx); err != nil {
		panic(err)
	}
	if _, err := session.Query("CREATE TABLE IF NOT EXISTS " + config.keyspace +
		".benchtab (pk bigint PRIMARY KEY, v1 bigint, v2 bigint)").Exec(ctx); err != nil {
		panic(err)
	}
}

func prepareSelectsBenchmark(ctx context.Context, session *cqldriver.Session, config Config) {
	log.Println("Preparing a selects benchmark (inserting values)...")

	insertQ, err := session.Prepare(ctx, insertStmt)
	if err != nil {
		panic(err)
	}

	var wg sync.WaitGroup
	nextBatchStart := int64(0)
	workers := config.concurrency
	if workers < 1024 {
		workers = 1024
	}

	for i := int64(0); i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				curBatchStart := atomic.AddInt64(&nextBatchStart, config.batchSize)
				if curBatchStart >= config.tasks {
					return
				}
				curBatchEnd := min(curBatchStart+config.batchSize, config.tasks)
				for pk := curBatchStart; pk < curBatchEnd; pk++ {
					insertQ.Bind(0, pk)
					insertQ.Bind(1, 2*pk)
					insertQ.Bind(2, 3*pk)
					if _, err := insertQ.Exec(ctx); err != nil {
						panic(err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
