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

// astronautRow is one row of $astronauts: a small synthetic roster used to
// exercise joins and aggregates against a third, unrelated relation (no
// natural key shared with $planets/$satellites other than row count).
type astronautRow struct {
	id           int32
	name         string
	missionCount int32
	active       bool
}

var astronautRows = []astronautRow{
	{1, "Aldrin", 2, false},
	{2, "Armstrong", 2, false},
	{3, "Collins", 2, false},
	{4, "Glenn", 2, false},
	{5, "Ride", 2, false},
	{6, "Jemison", 1, false},
	{7, "Chang-Diaz", 7, false},
	{8, "Whitson", 3, true},
	{9, "Hadfield", 3, false},
	{10, "Parmitano", 2, true},
	{11, "Cristoforetti", 2, true},
	{12, "Hopkins", 3, true},
	{13, "Koch", 2, false},
	{14, "Morgan", 1, false},
	{15, "Rubins", 2, true},
	{16, "Behnken", 2, false},
	{17, "Hurley", 2, false},
	{18, "Mann", 1, true},
	{19, "Watkins", 1, true},
	{20, "Lindgren", 2, false},
}

func buildAstronauts() *demoRelation {
	idB := newInt32Builder("id", false)
	nameB := newStringBuilder("name", false)
	missionsB := newInt32Builder("missionCount", false)
	activeB := newBoolBuilder("active", false)

	for _, r := range astronautRows {
		idB.AppendInt32(r.id)
		nameB.AppendString(r.name)
		missionsB.AppendInt32(r.missionCount)
		activeB.AppendBool(r.active)
	}

	m := mustMorsel(
		namedVector("id", idB.Finish()),
		namedVector("name", nameB.Finish()),
		namedVector("missionCount", missionsB.Finish()),
		namedVector("active", activeB.Finish()),
	)
	return &demoRelation{name: "$astronauts", morsel: m}
}
