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

// satelliteRow is one moon of $satellites. radiusKm is fabricated for all
// but the handful of named moons large enough to matter for the
// ORDER BY radius DESC LIMIT 3 seed scenario, which must deterministically
// return Ganymede, Titan, Callisto in that order.
type satelliteRow struct {
	id       int32
	planetId int32
	name     string
	radiusKm float64
}

// satelliteCounts gives, per planetId (1-indexed, matching planetRows),
// how many moons $satellites carries for that planet. Earth (planetId 3)
// carries exactly 1, the moon count the LEFT JOIN count seed scenario
// expects for Earth (demo_test.go checks it). The counts are
// a fixture invented for this engine, not a historical moon census, and
// sum to 177.
var satelliteCounts = map[int32]int{
	1: 0,  // Mercury
	2: 0,  // Venus
	3: 1,  // Earth
	4: 2,  // Mars
	5: 67, // Jupiter
	6: 61, // Saturn
	7: 14, // Neptune
	8: 27, // Uranus
	9: 5,  // Pluto
}

// namedMoons seeds the first few moons of a planet with real names and,
// for the three largest, a radius that makes the top-3 query deterministic.
// Keys match planetRows' id column, not real-world discovery order.
var namedMoons = map[int32][]struct {
	name     string
	radiusKm float64
}{
	3: {{"Moon", 1737.4}},
	4: {{"Phobos", 11.3}, {"Deimos", 6.2}},
	5: {{"Io", 1821.6}, {"Europa", 1560.8}, {"Ganymede", 2634.1}, {"Callisto", 2410.3}},
	6: {{"Titan", 2574.7}, {"Rhea", 763.8}, {"Iapetus", 734.5}, {"Dione", 561.4}, {"Tethys", 531.1}, {"Enceladus", 252.1}, {"Mimas", 198.2}},
	7: {{"Triton", 1353.4}, {"Nereid", 170.0}},
	8: {{"Titania", 788.4}, {"Oberon", 761.4}, {"Umbriel", 584.7}, {"Ariel", 578.9}, {"Miranda", 235.8}},
	9: {{"Charon", 606.0}},
}

func buildSatelliteRows() []satelliteRow {
	var rows []satelliteRow
	nextID := int32(1)
	for planetID := int32(1); planetID <= 9; planetID++ {
		total := satelliteCounts[planetID]
		named := namedMoons[planetID]
		for i, nm := range named {
			if i >= total {
				break
			}
			rows = append(rows, satelliteRow{id: nextID, planetId: planetID, name: nm.name, radiusKm: nm.radiusKm})
			nextID++
		}
		for i := len(named); i < total; i++ {
			rows = append(rows, satelliteRow{
				id:       nextID,
				planetId: planetID,
				name:     fmt.Sprintf("S/%d-%d", planetID, i+1),
				radiusKm: 1.0 + float64(total-i), // small, descending filler
			})
			nextID++
		}
	}
	return rows
}

func buildSatellites() *demoRelation {
	rows := buildSatelliteRows()

	idB := newInt32Builder("id", false)
	planetB := newInt32Builder("planetId", false)
	nameB := newStringBuilder("name", false)
	radiusB := newFloat64Builder("radiusKm", false)

	for _, r := range rows {
		idB.AppendInt32(r.id)
		planetB.AppendInt32(r.planetId)
		nameB.AppendString(r.name)
		radiusB.AppendFloat64(r.radiusKm)
	}

	m := mustMorsel(
		namedVector("id", idB.Finish()),
		namedVector("planetId", planetB.Finish()),
		namedVector("name", nameB.Finish()),
		namedVector("radiusKm", radiusB.Finish()),
	)
	return &demoRelation{name: "$satellites", morsel: m}
}
