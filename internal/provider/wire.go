package provider

import "github.com/rusel95/AstroSvitla-sub001/internal/astro"

// chartRequest is the JSON body both provider endpoints accept.
type chartRequest struct {
	Day       int     `json:"day"`
	Month     int     `json:"month"`
	Year      int     `json:"year"`
	Hour      int     `json:"hour"`
	Min       int     `json:"min"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Tzone     float64 `json:"tzone"`
	HouseType string  `json:"house_type"`
}

func newChartRequest(q astro.BirthQuery) chartRequest {
	return chartRequest{
		Day:       q.Day,
		Month:     q.Month,
		Year:      q.Year,
		Hour:      q.Hour,
		Min:       q.Minute,
		Lat:       q.Latitude,
		Lon:       q.Longitude,
		Tzone:     q.TimezoneOffset,
		HouseType: string(q.HouseSystem),
	}
}

// ChartData is the raw western_horoscope payload. Values are carried
// exactly as the provider sends them; interpretation and validation
// happen in the mapping layer.
type ChartData struct {
	Planets   []PlanetRecord `json:"planets"`
	Houses    []HouseRecord  `json:"houses"`
	Aspects   []AspectRecord `json:"aspects"`
	Ascendant float64        `json:"ascendant"`
	Midheaven float64        `json:"midheaven"`
}

// PlanetRecord is one entry of the planets array, which also carries the
// lunar node and Lilith. IsRetro arrives as the strings "true"/"false".
type PlanetRecord struct {
	Name       string  `json:"name"`
	FullDegree float64 `json:"full_degree"`
	NormDegree float64 `json:"norm_degree"`
	IsRetro    string  `json:"is_retro"`
	Sign       string  `json:"sign"`
	House      int     `json:"house"`
}

// HouseRecord is one house cusp.
type HouseRecord struct {
	House  int     `json:"house"`
	Sign   string  `json:"sign"`
	Degree float64 `json:"degree"`
}

// AspectRecord is one computed aspect between two bodies.
type AspectRecord struct {
	AspectingPlanet string  `json:"aspecting_planet"`
	AspectedPlanet  string  `json:"aspected_planet"`
	Type            string  `json:"type"`
	Orb             float64 `json:"orb"`
	Diff            float64 `json:"diff"`
}

// wheelResponse is the natal_wheel_chart acknowledgement pointing at the
// rendered image.
type wheelResponse struct {
	Status   bool   `json:"status"`
	ChartURL string `json:"chart_url"`
	Msg      string `json:"msg"`
}

// ChartImage is a downloaded wheel rendering.
type ChartImage struct {
	Data      []byte
	Format    string
	SourceURL string
}
