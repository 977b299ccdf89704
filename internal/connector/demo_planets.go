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

import "time"

// planetRow is the fixture data behind $planets. discoveryDate is a
// deliberately synthetic "known as of" date (not a historical record) whose
// only job is to make the FOR-clause seed scenarios deterministic: querying
// `FOR '1846-01-01'` must return 7 planets excluding Uranus, and
// `FOR '1930-03-14'` must add Uranus but still exclude Pluto.
type planetRow struct {
	id            int32
	name          string
	massEarths    float64
	numberOfMoons int32
	hasRings      bool
	discoveryDate string
}

var planetRows = []planetRow{
	{1, "Mercury", 0.055, 0, false, "0001-01-01"},
	{2, "Venus", 0.815, 0, false, "0001-01-01"},
	{3, "Earth", 1.0, 1, false, "0001-01-01"},
	{4, "Mars", 0.107, 2, false, "0001-01-01"},
	{5, "Jupiter", 317.8, 95, true, "0001-01-01"},
	{6, "Saturn", 95.2, 146, true, "0001-01-01"},
	{7, "Neptune", 17.1, 16, true, "1846-01-01"},
	{8, "Uranus", 14.5, 27, true, "1850-01-01"},
	{9, "Pluto", 0.0022, 5, false, "1930-03-15"},
}

func buildPlanets() *demoRelation {
	idB := newInt32Builder("id", false)
	nameB := newStringBuilder("name", false)
	massB := newFloat64Builder("massEarths", false)
	moonsB := newInt32Builder("numberOfMoons", false)
	ringsB := newBoolBuilder("hasRings", false)

	dates := make([]time.Time, len(planetRows))
	for i, p := range planetRows {
		idB.AppendInt32(p.id)
		nameB.AppendString(p.name)
		massB.AppendFloat64(p.massEarths)
		moonsB.AppendInt32(p.numberOfMoons)
		ringsB.AppendBool(p.hasRings)
		dates[i] = mustParseDay(p.discoveryDate)
	}

	m := mustMorsel(
		namedVector("id", idB.Finish()),
		namedVector("name", nameB.Finish()),
		namedVector("massEarths", massB.Finish()),
		namedVector("numberOfMoons", moonsB.Finish()),
		namedVector("hasRings", ringsB.Finish()),
	)
	return &demoRelation{name: "$planets", morsel: m, discoveryDates: dates}
}
