package mapping

import (
	"fmt"
	"testing"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/provider"
)

func sampleQuery() astro.BirthQuery {
	return astro.BirthQuery{
		Year:           1988,
		Month:          11,
		Day:            5,
		Hour:           6,
		Minute:         15,
		Latitude:       49.8397,
		Longitude:      24.0297,
		TimezoneOffset: 2,
		HouseSystem:    astro.Placidus,
	}
}

// sampleData is an Aries-rising chart: house 1 cusp in Aries so its
// ruler resolves to Mars.
func sampleData() *provider.ChartData {
	data := &provider.ChartData{
		Planets: []provider.PlanetRecord{
			{Name: "Sun", FullDegree: 222.7, Sign: "Scorpio", House: 8, IsRetro: "false"},
			{Name: "Moon", FullDegree: 95.3, Sign: "Cancer", House: 4, IsRetro: "false"},
			{Name: "Mercury", FullDegree: 240.1, Sign: "Sagittarius", House: 8, IsRetro: "true"},
			{Name: "Venus", FullDegree: 201.9, Sign: "Libra", House: 7, IsRetro: "false"},
			{Name: "Mars", FullDegree: 275.0, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Jupiter", FullDegree: 62.4, Sign: "Gemini", House: 2, IsRetro: "true"},
			{Name: "Saturn", FullDegree: 267.8, Sign: "Sagittarius", House: 9, IsRetro: "false"},
			{Name: "Uranus", FullDegree: 268.9, Sign: "Sagittarius", House: 9, IsRetro: "false"},
			{Name: "Neptune", FullDegree: 278.2, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Pluto", FullDegree: 222.1, Sign: "Scorpio", House: 8, IsRetro: "false"},
			{Name: "Node", FullDegree: 47.0, Sign: "Taurus", House: 3, IsRetro: "true"},
			{Name: "Lilith", FullDegree: 123.0, Sign: "Leo", House: 5, IsRetro: "false"},
		},
		Ascendant: 15.0,
		Midheaven: 280.0,
	}
	for i := 1; i <= 12; i++ {
		data.Houses = append(data.Houses, provider.HouseRecord{
			House:  i,
			Sign:   string(astro.Signs()[i-1]),
			Degree: float64(i-1) * 30,
		})
	}
	data.Aspects = []provider.AspectRecord{
		{AspectingPlanet: "Sun", AspectedPlanet: "Pluto", Type: "Conjunction", Orb: 0.6, Diff: 0.6},
		{AspectingPlanet: "Mars", AspectedPlanet: "Saturn", Type: "Square", Orb: 2.1, Diff: 88.1},
		{AspectingPlanet: "Moon", AspectedPlanet: "Node", Type: "Trine", Orb: 3.4, Diff: 123.4},
	}
	return data
}

func mustBuild(t *testing.T, data *provider.ChartData) *astro.NatalChart {
	t.Helper()
	chart, err := BuildChart(data, sampleQuery(), time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildChart: %v", err)
	}
	return chart
}

func TestBuildChart(t *testing.T) {
	chart := mustBuild(t, sampleData())

	if chart.Fingerprint != sampleQuery().Fingerprint() {
		t.Error("chart fingerprint should match the query fingerprint")
	}
	if len(chart.Planets) != 10 {
		t.Fatalf("planets = %d, want 10", len(chart.Planets))
	}
	if chart.Planets[0].Planet != astro.Sun || chart.Planets[9].Planet != astro.Pluto {
		t.Error("planets should be emitted in conventional order")
	}
	mars, ok := chart.Position(astro.Mars)
	if !ok || mars.Sign != astro.Capricorn || mars.House != 10 {
		t.Errorf("mars placement = %+v", mars)
	}
	mercury, _ := chart.Position(astro.Mercury)
	if !mercury.Retrograde {
		t.Error("mercury should be retrograde")
	}
	if len(chart.Houses) != 12 || chart.Houses[0].Sign != astro.Aries {
		t.Errorf("houses = %+v", chart.Houses)
	}
	if !chart.GeneratedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("generated at = %v", chart.GeneratedAt)
	}
}

func TestBuildChartDerivesSouthNode(t *testing.T) {
	chart := mustBuild(t, sampleData())

	north, ok := chart.Point(astro.NorthNode)
	if !ok {
		t.Fatal("north node point missing")
	}
	if north.Longitude != 47.0 || north.Sign != astro.Taurus || north.House != 3 {
		t.Errorf("north node = %+v", north)
	}

	south, ok := chart.Point(astro.SouthNode)
	if !ok {
		t.Fatal("south node point missing")
	}
	if south.Longitude != 227.0 {
		t.Errorf("south node longitude = %v, want 227.0", south.Longitude)
	}
	if south.Sign != astro.Scorpio {
		t.Errorf("south node sign = %v, want Scorpio", south.Sign)
	}
	if south.House != 9 {
		t.Errorf("south node house = %d, want 9", south.House)
	}
}

func TestBuildChartAngles(t *testing.T) {
	chart := mustBuild(t, sampleData())

	asc, ok := chart.Point(astro.Ascendant)
	if !ok || asc.Sign != astro.Aries || asc.House != 1 {
		t.Errorf("ascendant = %+v", asc)
	}
	mc, ok := chart.Point(astro.Midheaven)
	if !ok || mc.Sign != astro.Capricorn || mc.House != 10 {
		t.Errorf("midheaven = %+v", mc)
	}
}

func TestBuildChartLilithOptional(t *testing.T) {
	data := sampleData()
	data.Planets = data.Planets[:len(data.Planets)-1] // drop Lilith
	chart := mustBuild(t, data)

	if _, ok := chart.Point(astro.Lilith); ok {
		t.Error("lilith should be absent")
	}
	if _, ok := chart.Point(astro.SouthNode); !ok {
		t.Error("south node should still be derived")
	}
}

func TestBuildChartHouseRulers(t *testing.T) {
	chart := mustBuild(t, sampleData())

	if len(chart.Rulers) != 12 {
		t.Fatalf("rulers = %d, want 12", len(chart.Rulers))
	}
	first := chart.Rulers[0]
	if first.House != 1 || first.Ruler != astro.Mars {
		t.Fatalf("house 1 ruler = %+v, want Mars", first)
	}
	if first.RulerSign != astro.Capricorn || first.RulerHouse != 10 {
		t.Errorf("mars placement on ruler = %+v", first)
	}
	if len(first.Aspects) != 1 || first.Aspects[0].Type != astro.Square {
		t.Errorf("house 1 ruler aspects = %+v, want the Mars-Saturn square", first.Aspects)
	}

	eighth := chart.Rulers[7] // house 8 cusp Scorpio, traditional ruler Mars
	if eighth.Ruler != astro.Mars {
		t.Errorf("house 8 ruler = %s, want Mars", eighth.Ruler)
	}
}

func TestBuildChartRanksAndTruncatesAspects(t *testing.T) {
	data := sampleData()
	data.Aspects = nil
	for i := 0; i < 25; i++ {
		data.Aspects = append(data.Aspects, provider.AspectRecord{
			AspectingPlanet: "Sun",
			AspectedPlanet:  "Moon",
			Type:            "Trine",
			Orb:             float64(25-i) * 0.3, // descending so ranking must reorder
			Diff:            120,
		})
	}
	chart := mustBuild(t, data)

	if len(chart.Aspects) != 20 {
		t.Fatalf("aspects = %d, want 20", len(chart.Aspects))
	}
	for i := 1; i < len(chart.Aspects); i++ {
		if chart.Aspects[i-1].Orb > chart.Aspects[i].Orb {
			t.Fatalf("aspects not sorted by orb at %d: %v > %v", i, chart.Aspects[i-1].Orb, chart.Aspects[i].Orb)
		}
	}
	if chart.Aspects[0].Orb != 0.3 {
		t.Errorf("tightest orb = %v, want 0.3", chart.Aspects[0].Orb)
	}
}

func TestBuildChartAspectTieBreak(t *testing.T) {
	data := sampleData()
	data.Aspects = []provider.AspectRecord{
		{AspectingPlanet: "Sun", AspectedPlanet: "Moon", Type: "Sextile", Orb: 1.0, Diff: 61},
		{AspectingPlanet: "Venus", AspectedPlanet: "Mars", Type: "Conjunction", Orb: 1.0, Diff: 1},
	}
	chart := mustBuild(t, data)

	if chart.Aspects[0].Type != astro.Conjunction {
		t.Errorf("first aspect = %s, conjunctions outrank sextiles on equal orb", chart.Aspects[0].Type)
	}
}

func TestBuildChartRejectsBadFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*provider.ChartData)
		field  string
	}{
		{"unknown body", func(d *provider.ChartData) { d.Planets[0].Name = "Chiron" }, "planets.name"},
		{"bad sign", func(d *provider.ChartData) { d.Planets[0].Sign = "Ophiuchus" }, "Sun.sign"},
		{"longitude out of range", func(d *provider.ChartData) { d.Planets[0].FullDegree = 400 }, "Sun.longitude"},
		{"house out of range", func(d *provider.ChartData) { d.Planets[0].House = 13 }, "Sun.house"},
		{"bad retro flag", func(d *provider.ChartData) { d.Planets[0].IsRetro = "maybe" }, "Sun.is_retro"},
		{"duplicate planet", func(d *provider.ChartData) { d.Planets[1].Name = "Sun" }, "planets"},
		{"missing planet", func(d *provider.ChartData) { d.Planets = d.Planets[1:] }, "planets"},
		{"missing node", func(d *provider.ChartData) { d.Planets = d.Planets[:10] }, "planets"},
		{"eleven houses", func(d *provider.ChartData) { d.Houses = d.Houses[:11] }, "houses"},
		{"duplicate house", func(d *provider.ChartData) { d.Houses[1].House = 1 }, "houses"},
		{"bad house sign", func(d *provider.ChartData) { d.Houses[0].Sign = "nope" }, "houses.sign"},
		{"bad cusp degree", func(d *provider.ChartData) { d.Houses[0].Degree = -1 }, "houses.degree"},
		{"bad aspect body", func(d *provider.ChartData) { d.Aspects[0].AspectingPlanet = "Vertex" }, "aspects.aspecting_planet"},
		{"bad aspect type", func(d *provider.ChartData) { d.Aspects[0].Type = "parallel" }, "aspects.type"},
		{"negative orb", func(d *provider.ChartData) { d.Aspects[0].Orb = -0.1 }, "aspects.orb"},
		{"ascendant out of range", func(d *provider.ChartData) { d.Ascendant = 360 }, "ascendant"},
		{"midheaven out of range", func(d *provider.ChartData) { d.Midheaven = -5 }, "midheaven"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := sampleData()
			tc.mutate(data)
			_, err := BuildChart(data, sampleQuery(), time.Now())
			if err == nil {
				t.Fatal("expected a mapping error, got nil")
			}
			me, ok := AsMappingError(err)
			if !ok {
				t.Fatalf("err = %v, want MappingError", err)
			}
			if me.Field != tc.field {
				t.Errorf("field = %q, want %q", me.Field, tc.field)
			}
		})
	}
}

func TestMappingErrorMessage(t *testing.T) {
	err := badField("planets.name", "Chiron")
	want := fmt.Sprintf("mapping: invalid %s: %q", "planets.name", "Chiron")
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
