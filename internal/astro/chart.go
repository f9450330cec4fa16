package astro

import "time"

// PlanetPosition places one planet on the chart wheel.
type PlanetPosition struct {
	Planet     Planet     `json:"planet"`
	Sign       ZodiacSign `json:"sign"`
	Longitude  float64    `json:"longitude"`
	House      int        `json:"house"`
	Retrograde bool       `json:"retrograde"`
}

// House is one of the twelve houses with its cusp.
type House struct {
	Number        int        `json:"number"`
	Sign          ZodiacSign `json:"sign"`
	CuspLongitude float64    `json:"cusp_longitude"`
}

// Aspect is an angular relationship between two chart bodies.
type Aspect struct {
	First      Body       `json:"first"`
	Second     Body       `json:"second"`
	Type       AspectType `json:"type"`
	Orb        float64    `json:"orb"`
	Separation float64    `json:"separation"`
}

// Involves reports whether the body participates in the aspect.
func (a Aspect) Involves(b Body) bool {
	return a.First == b || a.Second == b
}

// HouseRuler links a house to the planet ruling its cusp sign, with the
// ruler's own placement and the aspects it participates in.
type HouseRuler struct {
	House      int        `json:"house"`
	Ruler      Planet     `json:"ruler"`
	RulerSign  ZodiacSign `json:"ruler_sign"`
	RulerHouse int        `json:"ruler_house"`
	Aspects    []Aspect   `json:"aspects"`
}

// ChartPoint is a non-planet chart position: a lunar node, Lilith, or an
// angle (Ascendant, Midheaven).
type ChartPoint struct {
	Name      Body       `json:"name"`
	Sign      ZodiacSign `json:"sign"`
	Longitude float64    `json:"longitude"`
	House     int        `json:"house"`
}

// AssetReference identifies a stored wheel image by id and file format.
type AssetReference struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

// NatalChart is the complete domain representation of one birth chart.
// Image is nil when the wheel rendering was unavailable; everything else
// is always populated.
type NatalChart struct {
	Fingerprint string           `json:"fingerprint"`
	Query       BirthQuery       `json:"query"`
	Planets     []PlanetPosition `json:"planets"`
	Houses      []House          `json:"houses"`
	Rulers      []HouseRuler     `json:"rulers"`
	Aspects     []Aspect         `json:"aspects"`
	Points      []ChartPoint     `json:"points"`
	Image       *AssetReference  `json:"image,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Point returns the named chart point, if present.
func (c *NatalChart) Point(name Body) (ChartPoint, bool) {
	for _, p := range c.Points {
		if p.Name == name {
			return p, true
		}
	}
	return ChartPoint{}, false
}

// Position returns the named planet's placement, if present.
func (c *NatalChart) Position(p Planet) (PlanetPosition, bool) {
	for _, pos := range c.Planets {
		if pos.Planet == p {
			return pos, true
		}
	}
	return PlanetPosition{}, false
}
