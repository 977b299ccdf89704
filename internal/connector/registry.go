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

package connector

import "fmt"

// Registry resolves a relation name to the Connector that serves it. The
// engine's QueryContext carries one; callers build it once at startup.
type Registry struct {
	byName map[string]Connector
}

// NewRegistry builds a Registry from an adapter selector, mirroring the
// string-selector factory shape used elsewhere in this codebase: "demo"
// (the default) wires the three built-in in-memory relations; any other
// adapter name is a placeholder for a host-supplied connector set and is
// rejected here rather than silently producing an empty registry.
func NewRegistry(adapter string, extra map[string]Connector) (*Registry, error) {
	r := &Registry{byName: map[string]Connector{}}
	switch adapter {
	case "", "demo":
		for name, c := range NewDemoConnectors() {
			r.byName[name] = c
		}
	default:
		return nil, fmt.Errorf("connector: unknown adapter %q", adapter)
	}
	for name, c := range extra {
		r.byName[name] = c
	}
	return r, nil
}

// Lookup resolves relationName to its Connector, or reports false if no
// connector is registered for it.
func (r *Registry) Lookup(relationName string) (Connector, bool) {
	c, ok := r.byName[relationName]
	return c, ok
}

// Names returns every registered relation name, for diagnostics and
// catalog-style introspection.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}
