package astro

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HouseSystem selects the house division scheme the provider computes
// cusps with.
type HouseSystem string

const (
	Placidus    HouseSystem = "placidus"
	Koch        HouseSystem = "koch"
	Topocentric HouseSystem = "topocentric"
	Poryphry    HouseSystem = "poryphry"
	EqualHouse  HouseSystem = "equal_house"
	WholeSign   HouseSystem = "whole_sign"
)

// HouseSystems returns every supported house division scheme.
func HouseSystems() []HouseSystem {
	return []HouseSystem{Placidus, Koch, Topocentric, Poryphry, EqualHouse, WholeSign}
}

// BirthQuery is the immutable input a chart is computed from: local birth
// date and time, geographic coordinates, and the UTC offset in effect at
// the birth place.
type BirthQuery struct {
	Year           int         `json:"year" yaml:"year"`
	Month          int         `json:"month" yaml:"month"`
	Day            int         `json:"day" yaml:"day"`
	Hour           int         `json:"hour" yaml:"hour"`
	Minute         int         `json:"minute" yaml:"minute"`
	Latitude       float64     `json:"latitude" yaml:"latitude"`
	Longitude      float64     `json:"longitude" yaml:"longitude"`
	TimezoneOffset float64     `json:"timezone_offset" yaml:"timezone_offset"`
	HouseSystem    HouseSystem `json:"house_system" yaml:"house_system"`
}

// Validate checks the query field ranges. Hour, minute, coordinates and
// offset accept zero, so only fields whose zero value is meaningless are
// required.
func (q BirthQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Year, validation.Required, validation.Min(1200), validation.Max(2400)),
		validation.Field(&q.Month, validation.Required, validation.Min(1), validation.Max(12)),
		validation.Field(&q.Day, validation.Required, validation.Min(1), validation.Max(31)),
		validation.Field(&q.Hour, validation.Min(0), validation.Max(23)),
		validation.Field(&q.Minute, validation.Min(0), validation.Max(59)),
		validation.Field(&q.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&q.Longitude, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&q.TimezoneOffset, validation.Min(-14.0), validation.Max(14.0)),
		validation.Field(&q.HouseSystem, validation.Required,
			validation.In(Placidus, Koch, Topocentric, Poryphry, EqualHouse, WholeSign)),
	)
}

// Fingerprint derives the stable cache identity of the query. Coordinates
// are rounded to four decimals and the offset to two before hashing, so
// equivalent queries converge on one key regardless of float noise.
func (q BirthQuery) Fingerprint() string {
	canonical := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d|%.4f|%.4f|%+.2f|%s",
		q.Year, q.Month, q.Day, q.Hour, q.Minute,
		q.Latitude, q.Longitude, q.TimezoneOffset, q.HouseSystem)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:16])
}
