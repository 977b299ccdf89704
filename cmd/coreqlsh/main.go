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

// Package main is a small interactive demo shell for the coreql engine.
//
// coreql has no SQL tokenizer or parser of its own — pkg/ast is the shape
// an external parser hands the engine, not something this module builds
// (see SPEC_FULL.md §1). So instead of reading SQL text, this shell reads a
// query *name* from stdin and looks it up in a small catalog of
// hand-built ast.Statement trees over the three built-in demo relations
// ($planets, $satellites, $astronauts), the same fixtures the test suite
// exercises. Type "list" to see the catalog, "explain <name>" to see the
// plan instead of running it, or "quit" to exit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"coreql/internal/democatalog"
	"coreql/internal/engine"
	"coreql/pkg/ast"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug-level structured logging")
	timeout := flag.Duration("timeout", 5*time.Second, "per-query execution timeout")
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coreqlsh: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	qc, err := engine.New(engine.Options{
		Logger:  logger,
		Today:   time.Now().UTC(),
		Timeout: *timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "coreqlsh: engine init: %v\n", err)
		os.Exit(1)
	}

	catalog := democatalog.Queries()

	fmt.Println("coreql demo shell — type 'list', 'explain <name>', '<name>', or 'quit'")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("coreql> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "quit" || line == "exit":
			return
		case line == "list":
			for _, name := range catalogNames(catalog) {
				fmt.Println("  " + name)
			}
		case strings.HasPrefix(line, "explain "):
			runQuery(qc, catalog, strings.TrimPrefix(line, "explain "), true)
		default:
			runQuery(qc, catalog, line, false)
		}
	}
}

func runQuery(qc *engine.QueryContext, catalog map[string]ast.Statement, name string, explain bool) {
	stmt, ok := catalog[name]
	if !ok {
		fmt.Printf("unknown query %q; type 'list' to see the catalog\n", name)
		return
	}
	if explain {
		stmt = &ast.Explain{Stmt: stmt}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cur, err := engine.Execute(ctx, qc, stmt, nil)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer cur.Cancel()

	if explain {
		fmt.Println(cur.Explain(false))
		return
	}

	rows, err := cur.FetchAll()
	printRows(rows)
	if err != nil {
		fmt.Printf("error after %d row(s): %v\n", len(rows), err)
	}
}

func printRows(rows []engine.Row) {
	if len(rows) == 0 {
		fmt.Println("(0 rows)")
		return
	}
	cols := columnOrder(rows[0])
	fmt.Println(strings.Join(cols, "\t"))
	for _, row := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = formatValue(row[c])
		}
		fmt.Println(strings.Join(vals, "\t"))
	}
	fmt.Printf("(%d row%s)\n", len(rows), plural(len(rows)))
}

func columnOrder(row engine.Row) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	return cols
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func catalogNames(catalog map[string]ast.Statement) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	return names
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level.SetLevel(zap.WarnLevel)
	}
	return cfg.Build()
}
