// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is a micro-benchmark harness for the coreql engine: it runs
// a fixed query a configurable number of times against the built-in demo
// relations and reports row throughput, the same shape as the teacher's
// tools/http-loadgen harness (fixed workload, fixed iteration count,
// wall-clock summary) applied to engine.Execute instead of HTTP requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"coreql/internal/democatalog"
	"coreql/internal/engine"
	"coreql/pkg/ast"
)

func main() {
	iterations := flag.Int("iterations", 200, "number of times to run the query")
	query := flag.String("query", "moon_counts_by_planet", "catalog query name to benchmark")
	flag.Parse()

	catalog := democatalog.Queries()
	stmt, ok := catalog[*query]
	if !ok {
		fmt.Fprintf(os.Stderr, "coreqlbench: unknown query %q\n", *query)
		os.Exit(1)
	}

	qc, err := engine.New(engine.Options{
		Logger: zap.NewNop(),
		Today:  time.Now().UTC(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "coreqlbench: engine init: %v\n", err)
		os.Exit(1)
	}

	var totalRows int
	start := time.Now()
	for i := 0; i < *iterations; i++ {
		if err := runOnce(qc, stmt, &totalRows); err != nil {
			fmt.Fprintf(os.Stderr, "coreqlbench: iteration %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("query:       %s\n", *query)
	fmt.Printf("iterations:  %d\n", *iterations)
	fmt.Printf("total rows:  %d\n", totalRows)
	fmt.Printf("elapsed:     %s\n", elapsed)
	fmt.Printf("per query:   %s\n", elapsed/time.Duration(*iterations))
	if totalRows > 0 {
		fmt.Printf("per row:     %s\n", elapsed/time.Duration(totalRows))
	}
}

func runOnce(qc *engine.QueryContext, stmt ast.Statement, totalRows *int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := engine.Execute(ctx, qc, stmt, nil)
	if err != nil {
		return err
	}
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	*totalRows += len(rows)
	return err
}
