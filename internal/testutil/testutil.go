// Package testutil provides shared test helpers for setting up chart
// stores and canned provider payloads.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/rusel95/AstroSvitla-sub001/internal/assetstore"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartstore"
	"github.com/rusel95/AstroSvitla-sub001/internal/provider"
)

// TestChartDB creates a temporary SQLite chart store that is
// automatically cleaned up.
func TestChartDB(t *testing.T) *chartstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "astrosvitla-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := chartstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestAssetDir creates a temporary asset directory with its store.
func TestAssetDir(t *testing.T) (string, *assetstore.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := assetstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SampleQuery returns a valid birth query; vary minute to get distinct
// fingerprints.
func SampleQuery(minute int) astro.BirthQuery {
	return astro.BirthQuery{
		Year:           1990,
		Month:          3,
		Day:            21,
		Hour:           11,
		Minute:         minute,
		Latitude:       50.4501,
		Longitude:      30.5234,
		TimezoneOffset: 2,
		HouseSystem:    astro.Placidus,
	}
}

// SampleChartData returns a provider payload that maps cleanly: ten
// planets plus the node, twelve houses, one aspect and both angles.
func SampleChartData() *provider.ChartData {
	data := &provider.ChartData{
		Planets: []provider.PlanetRecord{
			{Name: "Sun", FullDegree: 0.5, Sign: "Aries", House: 1, IsRetro: "false"},
			{Name: "Moon", FullDegree: 95.3, Sign: "Cancer", House: 4, IsRetro: "false"},
			{Name: "Mercury", FullDegree: 350.1, Sign: "Pisces", House: 12, IsRetro: "true"},
			{Name: "Venus", FullDegree: 41.9, Sign: "Taurus", House: 2, IsRetro: "false"},
			{Name: "Mars", FullDegree: 275.0, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Jupiter", FullDegree: 62.4, Sign: "Gemini", House: 3, IsRetro: "false"},
			{Name: "Saturn", FullDegree: 297.8, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Uranus", FullDegree: 276.9, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Neptune", FullDegree: 283.2, Sign: "Capricorn", House: 10, IsRetro: "false"},
			{Name: "Pluto", FullDegree: 227.1, Sign: "Scorpio", House: 8, IsRetro: "true"},
			{Name: "Node", FullDegree: 317.0, Sign: "Aquarius", House: 11, IsRetro: "true"},
		},
		Ascendant: 15.0,
		Midheaven: 280.0,
		Aspects: []provider.AspectRecord{
			{AspectingPlanet: "Sun", AspectedPlanet: "Moon", Type: "Square", Orb: 4.8, Diff: 94.8},
		},
	}
	for i := 1; i <= 12; i++ {
		data.Houses = append(data.Houses, provider.HouseRecord{
			House:  i,
			Sign:   string(astro.Signs()[i-1]),
			Degree: float64(i-1) * 30,
		})
	}
	return data
}

// SampleImage returns a small SVG wheel payload.
func SampleImage() *provider.ChartImage {
	return &provider.ChartImage{Data: []byte("<svg></svg>"), Format: "svg"}
}

// StubProvider is a canned chart fetcher. The zero value serves
// SampleChartData and SampleImage; set the error fields to fail calls.
type StubProvider struct {
	mu        sync.Mutex
	Data      *provider.ChartData
	DataErr   error
	Img       *provider.ChartImage
	ImgErr    error
	dataCalls int
	imgCalls  int
}

func (p *StubProvider) FetchChartData(_ context.Context, _ astro.BirthQuery) (*provider.ChartData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataCalls++
	if p.DataErr != nil {
		return nil, p.DataErr
	}
	if p.Data == nil {
		return SampleChartData(), nil
	}
	return p.Data, nil
}

func (p *StubProvider) FetchChartImage(_ context.Context, _ astro.BirthQuery) (*provider.ChartImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imgCalls++
	if p.ImgErr != nil {
		return nil, p.ImgErr
	}
	if p.Img == nil {
		return SampleImage(), nil
	}
	return p.Img, nil
}

// Calls reports how many data and image fetches were made.
func (p *StubProvider) Calls() (data, img int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dataCalls, p.imgCalls
}
