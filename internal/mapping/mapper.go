// Package mapping converts raw provider payloads into validated domain
// charts. Conversion is all-or-nothing: the first value that cannot be
// interpreted aborts the whole chart, so a stored chart is either fully
// valid or absent.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/provider"
)

// maxAspects caps the chart's aspect list after ranking.
const maxAspects = 20

// MappingError reports the first provider field that could not be
// interpreted.
type MappingError struct {
	Field string
	Value string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping: invalid %s: %q", e.Field, e.Value)
}

// AsMappingError unwraps err into a MappingError, if it carries one.
func AsMappingError(err error) (*MappingError, bool) {
	var me *MappingError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

func badField(field string, value any) *MappingError {
	return &MappingError{Field: field, Value: fmt.Sprint(value)}
}

// BuildChart validates and converts one provider payload into a domain
// chart keyed by the query's fingerprint.
func BuildChart(data *provider.ChartData, query astro.BirthQuery, generatedAt time.Time) (*astro.NatalChart, error) {
	if data == nil {
		return nil, badField("payload", "<nil>")
	}

	planets, points, err := splitBodies(data.Planets)
	if err != nil {
		return nil, err
	}
	houses, err := mapHouses(data.Houses)
	if err != nil {
		return nil, err
	}
	aspects, err := mapAspects(data.Aspects)
	if err != nil {
		return nil, err
	}
	angles, err := mapAngles(data.Ascendant, data.Midheaven)
	if err != nil {
		return nil, err
	}
	points = append(points, angles...)

	rulers, err := deriveRulers(houses, planets, aspects)
	if err != nil {
		return nil, err
	}

	return &astro.NatalChart{
		Fingerprint: query.Fingerprint(),
		Query:       query,
		Planets:     planets,
		Houses:      houses,
		Rulers:      rulers,
		Aspects:     aspects,
		Points:      points,
		GeneratedAt: generatedAt.UTC(),
	}, nil
}

// splitBodies separates the provider's mixed planets array into the ten
// planet placements and the node/Lilith points. The south node is not
// transmitted; it is derived as the exact opposite of the north node.
func splitBodies(records []provider.PlanetRecord) ([]astro.PlanetPosition, []astro.ChartPoint, error) {
	placed := make(map[astro.Planet]astro.PlanetPosition, len(astro.Planets()))
	var north, lilith *astro.ChartPoint

	for _, rec := range records {
		if planet, ok := astro.ParsePlanet(rec.Name); ok {
			if _, dup := placed[planet]; dup {
				return nil, nil, badField("planets", "duplicate "+rec.Name)
			}
			pos, err := planetPosition(planet, rec)
			if err != nil {
				return nil, nil, err
			}
			placed[planet] = pos
			continue
		}

		body, ok := astro.ParseBody(rec.Name)
		if !ok {
			return nil, nil, badField("planets.name", rec.Name)
		}
		switch body {
		case astro.NorthNode:
			pt, err := chartPoint(astro.NorthNode, rec)
			if err != nil {
				return nil, nil, err
			}
			north = &pt
		case astro.Lilith:
			pt, err := chartPoint(astro.Lilith, rec)
			if err != nil {
				return nil, nil, err
			}
			lilith = &pt
		default:
			return nil, nil, badField("planets.name", rec.Name)
		}
	}

	positions := make([]astro.PlanetPosition, 0, len(astro.Planets()))
	for _, planet := range astro.Planets() {
		pos, ok := placed[planet]
		if !ok {
			return nil, nil, badField("planets", "missing "+string(planet))
		}
		positions = append(positions, pos)
	}
	if north == nil {
		return nil, nil, badField("planets", "missing North Node")
	}

	southLon := astro.OppositeLongitude(north.Longitude)
	southSign, ok := astro.SignAt(southLon)
	if !ok {
		return nil, nil, badField("south_node.longitude", southLon)
	}
	south := astro.ChartPoint{
		Name:      astro.SouthNode,
		Sign:      southSign,
		Longitude: southLon,
		House:     astro.OppositeHouse(north.House),
	}

	points := []astro.ChartPoint{*north, south}
	if lilith != nil {
		points = append(points, *lilith)
	}
	return positions, points, nil
}

func planetPosition(planet astro.Planet, rec provider.PlanetRecord) (astro.PlanetPosition, error) {
	sign, lon, house, err := placement(string(planet), rec)
	if err != nil {
		return astro.PlanetPosition{}, err
	}
	retro, err := parseRetro(string(planet), rec.IsRetro)
	if err != nil {
		return astro.PlanetPosition{}, err
	}
	return astro.PlanetPosition{
		Planet:     planet,
		Sign:       sign,
		Longitude:  lon,
		House:      house,
		Retrograde: retro,
	}, nil
}

func chartPoint(name astro.Body, rec provider.PlanetRecord) (astro.ChartPoint, error) {
	sign, lon, house, err := placement(string(name), rec)
	if err != nil {
		return astro.ChartPoint{}, err
	}
	return astro.ChartPoint{Name: name, Sign: sign, Longitude: lon, House: house}, nil
}

func placement(label string, rec provider.PlanetRecord) (astro.ZodiacSign, float64, int, error) {
	if _, ok := astro.SignAt(rec.FullDegree); !ok {
		return "", 0, 0, badField(label+".longitude", rec.FullDegree)
	}
	sign, ok := astro.ParseSign(rec.Sign)
	if !ok {
		return "", 0, 0, badField(label+".sign", rec.Sign)
	}
	if rec.House < 1 || rec.House > 12 {
		return "", 0, 0, badField(label+".house", rec.House)
	}
	return sign, rec.FullDegree, rec.House, nil
}

func parseRetro(label, raw string) (bool, error) {
	switch {
	case strings.EqualFold(raw, "true"):
		return true, nil
	case strings.EqualFold(raw, "false"), raw == "":
		return false, nil
	}
	return false, badField(label+".is_retro", raw)
}

func mapHouses(records []provider.HouseRecord) ([]astro.House, error) {
	if len(records) != 12 {
		return nil, badField("houses", fmt.Sprintf("%d entries", len(records)))
	}
	houses := make([]astro.House, 12)
	var seen [13]bool
	for _, rec := range records {
		if rec.House < 1 || rec.House > 12 {
			return nil, badField("houses.house", rec.House)
		}
		if seen[rec.House] {
			return nil, badField("houses", fmt.Sprintf("duplicate house %d", rec.House))
		}
		seen[rec.House] = true
		if _, ok := astro.SignAt(rec.Degree); !ok {
			return nil, badField("houses.degree", rec.Degree)
		}
		sign, ok := astro.ParseSign(rec.Sign)
		if !ok {
			return nil, badField("houses.sign", rec.Sign)
		}
		houses[rec.House-1] = astro.House{Number: rec.House, Sign: sign, CuspLongitude: rec.Degree}
	}
	return houses, nil
}

// mapAspects validates every aspect, then ranks by orb ascending with
// ties broken by aspect class, and keeps the strongest twenty.
func mapAspects(records []provider.AspectRecord) ([]astro.Aspect, error) {
	aspects := make([]astro.Aspect, 0, len(records))
	for _, rec := range records {
		first, ok := astro.ParseBody(rec.AspectingPlanet)
		if !ok {
			return nil, badField("aspects.aspecting_planet", rec.AspectingPlanet)
		}
		second, ok := astro.ParseBody(rec.AspectedPlanet)
		if !ok {
			return nil, badField("aspects.aspected_planet", rec.AspectedPlanet)
		}
		kind, ok := astro.ParseAspectType(rec.Type)
		if !ok {
			return nil, badField("aspects.type", rec.Type)
		}
		if math.IsNaN(rec.Orb) || rec.Orb < 0 || rec.Orb >= 360 {
			return nil, badField("aspects.orb", rec.Orb)
		}
		if math.IsNaN(rec.Diff) || rec.Diff < 0 || rec.Diff >= 360 {
			return nil, badField("aspects.diff", rec.Diff)
		}
		aspects = append(aspects, astro.Aspect{
			First:      first,
			Second:     second,
			Type:       kind,
			Orb:        rec.Orb,
			Separation: rec.Diff,
		})
	}

	sort.SliceStable(aspects, func(i, j int) bool {
		if aspects[i].Orb != aspects[j].Orb {
			return aspects[i].Orb < aspects[j].Orb
		}
		return aspects[i].Type.Priority() < aspects[j].Type.Priority()
	})
	if len(aspects) > maxAspects {
		aspects = aspects[:maxAspects]
	}
	return aspects, nil
}

func mapAngles(ascendant, midheaven float64) ([]astro.ChartPoint, error) {
	ascSign, ok := astro.SignAt(ascendant)
	if !ok {
		return nil, badField("ascendant", ascendant)
	}
	mcSign, ok := astro.SignAt(midheaven)
	if !ok {
		return nil, badField("midheaven", midheaven)
	}
	return []astro.ChartPoint{
		{Name: astro.Ascendant, Sign: ascSign, Longitude: ascendant, House: 1},
		{Name: astro.Midheaven, Sign: mcSign, Longitude: midheaven, House: 10},
	}, nil
}

// deriveRulers resolves each house cusp's traditional ruler and collects
// the ruler's placement plus its aspects from the chart's ranked list.
func deriveRulers(houses []astro.House, planets []astro.PlanetPosition, aspects []astro.Aspect) ([]astro.HouseRuler, error) {
	byPlanet := make(map[astro.Planet]astro.PlanetPosition, len(planets))
	for _, pos := range planets {
		byPlanet[pos.Planet] = pos
	}

	rulers := make([]astro.HouseRuler, 0, len(houses))
	for _, house := range houses {
		ruler := house.Sign.Ruler()
		pos, ok := byPlanet[ruler]
		if !ok {
			return nil, badField("rulers", fmt.Sprintf("house %d ruler %s missing", house.Number, ruler))
		}
		involved := make([]astro.Aspect, 0, 4)
		for _, a := range aspects {
			if a.Involves(astro.Body(ruler)) {
				involved = append(involved, a)
			}
		}
		rulers = append(rulers, astro.HouseRuler{
			House:      house.Number,
			Ruler:      ruler,
			RulerSign:  pos.Sign,
			RulerHouse: pos.House,
			Aspects:    involved,
		})
	}
	return rulers, nil
}
