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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"coreql/internal/temporal"
)

func TestDemoConnectorsCoverAllThreeRelations(t *testing.T) {
	conns := NewDemoConnectors()
	require.Len(t, conns, 3)
	require.Contains(t, conns, "$planets")
	require.Contains(t, conns, "$satellites")
	require.Contains(t, conns, "$astronauts")
}

func TestPlanetsOnlyRelationSupportsTemporalPartitioning(t *testing.T) {
	conns := NewDemoConnectors()
	require.True(t, conns["$planets"].Supports(TemporalPartitioning))
	require.False(t, conns["$satellites"].Supports(TemporalPartitioning))
	require.False(t, conns["$astronauts"].Supports(TemporalPartitioning))
}

func TestSatellitesHasExactlyOneMoonForEarth(t *testing.T) {
	d := buildSatellites()
	rows := d.morsel
	planetCol := rows.Column("planetId")
	count := 0
	for i := 0; i < rows.NumRows(); i++ {
		if planetCol.Int32(i) == 3 {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.Equal(t, 177, rows.NumRows())
}

func TestPlanetsDiscoveryDateScenarios(t *testing.T) {
	d := buildPlanets()

	at1846 := mustParseDay("1846-01-01")
	idx := d.FilterByDiscoveryDate(temporal.Range{End: at1846})
	require.Len(t, idx, 7)
	for _, i := range idx {
		require.NotEqual(t, "Uranus", d.morsel.Column("name").String(int(i)))
		require.NotEqual(t, "Pluto", d.morsel.Column("name").String(int(i)))
	}

	at1930 := mustParseDay("1930-03-14")
	idx = d.FilterByDiscoveryDate(temporal.Range{End: at1930})
	require.Len(t, idx, 8)
	names := make(map[string]bool)
	for _, i := range idx {
		names[d.morsel.Column("name").String(int(i))] = true
	}
	require.True(t, names["Uranus"])
	require.False(t, names["Pluto"])
}

func TestReadHonorsProjectionAndLimit(t *testing.T) {
	d := buildAstronauts()
	one := int64(3)
	it, err := d.Read(context.Background(), Unit{ID: "$astronauts"}, []string{"name"}, nil, &one)
	require.NoError(t, err)
	m, err := it.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, m.Schema.Len())
	require.Equal(t, 3, m.NumRows())

	next, err := it.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, next)
}
