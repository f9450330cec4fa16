// Package astro defines the natal chart domain model: the zodiac and
// planet vocabulary, the chart types assembled from provider data, and
// the pure geometric derivations (sign boundaries, opposite points,
// traditional rulership).
package astro

import (
	"math"
	"strings"
)

// ZodiacSign is one of the twelve signs of the tropical zodiac.
type ZodiacSign string

const (
	Aries       ZodiacSign = "Aries"
	Taurus      ZodiacSign = "Taurus"
	Gemini      ZodiacSign = "Gemini"
	Cancer      ZodiacSign = "Cancer"
	Leo         ZodiacSign = "Leo"
	Virgo       ZodiacSign = "Virgo"
	Libra       ZodiacSign = "Libra"
	Scorpio     ZodiacSign = "Scorpio"
	Sagittarius ZodiacSign = "Sagittarius"
	Capricorn   ZodiacSign = "Capricorn"
	Aquarius    ZodiacSign = "Aquarius"
	Pisces      ZodiacSign = "Pisces"
)

// signWheel fixes the zodiac order: index i covers [i*30, (i+1)*30) degrees
// of ecliptic longitude.
var signWheel = [12]ZodiacSign{
	Aries, Taurus, Gemini, Cancer, Leo, Virgo,
	Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces,
}

// rulers maps each sign to its traditional (pre-outer-planet) ruler.
var rulers = map[ZodiacSign]Planet{
	Aries:       Mars,
	Taurus:      Venus,
	Gemini:      Mercury,
	Cancer:      Moon,
	Leo:         Sun,
	Virgo:       Mercury,
	Libra:       Venus,
	Scorpio:     Mars,
	Sagittarius: Jupiter,
	Capricorn:   Saturn,
	Aquarius:    Saturn,
	Pisces:      Jupiter,
}

// Signs returns the twelve signs in zodiac order.
func Signs() []ZodiacSign {
	return signWheel[:]
}

// ParseSign resolves a provider-supplied sign name, ignoring case and
// surrounding whitespace.
func ParseSign(raw string) (ZodiacSign, bool) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, s := range signWheel {
		if strings.ToLower(string(s)) == needle {
			return s, true
		}
	}
	return "", false
}

// SignAt returns the sign containing the given ecliptic longitude.
// Longitudes outside [0, 360) are rejected rather than wrapped so that
// corrupt provider values surface instead of landing in a random sign.
func SignAt(longitude float64) (ZodiacSign, bool) {
	if longitude < 0 || longitude >= 360 || math.IsNaN(longitude) {
		return "", false
	}
	return signWheel[int(longitude/30)%12], true
}

// Ruler returns the traditional ruling planet of the sign.
func (s ZodiacSign) Ruler() Planet {
	return rulers[s]
}

// Planet is one of the ten bodies carried on every chart.
type Planet string

const (
	Sun     Planet = "Sun"
	Moon    Planet = "Moon"
	Mercury Planet = "Mercury"
	Venus   Planet = "Venus"
	Mars    Planet = "Mars"
	Jupiter Planet = "Jupiter"
	Saturn  Planet = "Saturn"
	Uranus  Planet = "Uranus"
	Neptune Planet = "Neptune"
	Pluto   Planet = "Pluto"
)

var planetOrder = [10]Planet{
	Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto,
}

// Planets returns the ten planets in conventional order.
func Planets() []Planet {
	return planetOrder[:]
}

// ParsePlanet resolves a provider-supplied planet name, ignoring case.
func ParsePlanet(raw string) (Planet, bool) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range planetOrder {
		if strings.ToLower(string(p)) == needle {
			return p, true
		}
	}
	return "", false
}

// Body identifies any aspect participant: a planet, a lunar node, Lilith,
// or one of the chart angles.
type Body string

const (
	NorthNode Body = "North Node"
	SouthNode Body = "South Node"
	Lilith    Body = "Lilith"
	Ascendant Body = "Ascendant"
	Midheaven Body = "Midheaven"
)

// bodyAliases covers the name variants providers use for non-planet bodies.
var bodyAliases = map[string]Body{
	"node":              NorthNode,
	"north node":        NorthNode,
	"true node":         NorthNode,
	"rahu":              NorthNode,
	"south node":        SouthNode,
	"ketu":              SouthNode,
	"lilith":            Lilith,
	"black moon lilith": Lilith,
	"ascendant":         Ascendant,
	"asc":               Ascendant,
	"midheaven":         Midheaven,
	"mc":                Midheaven,
	"medium coeli":      Midheaven,
}

// ParseBody resolves any aspect participant name to its canonical form.
func ParseBody(raw string) (Body, bool) {
	if p, ok := ParsePlanet(raw); ok {
		return Body(p), true
	}
	if b, ok := bodyAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return b, true
	}
	return "", false
}

// OppositeLongitude returns the longitude exactly opposite on the wheel,
// normalized to [0, 360).
func OppositeLongitude(longitude float64) float64 {
	return math.Mod(longitude+180, 360)
}

// OppositeHouse returns the house opposite the given one (1..12).
func OppositeHouse(house int) int {
	return (house+5)%12 + 1
}

// AspectType names the angular relationship between two bodies.
type AspectType string

const (
	Conjunction    AspectType = "Conjunction"
	Opposition     AspectType = "Opposition"
	Square         AspectType = "Square"
	Trine          AspectType = "Trine"
	Sextile        AspectType = "Sextile"
	Quincunx       AspectType = "Quincunx"
	SemiSextile    AspectType = "Semi Sextile"
	SemiSquare     AspectType = "Semi Square"
	Sesquiquadrate AspectType = "Sesquiquadrate"
)

// aspectClass ranks aspect families by strength. Lower is stronger; used
// to break orb ties when ordering a chart's aspect list.
var aspectClass = map[AspectType]int{
	Conjunction:    0,
	Opposition:     0,
	Square:         1,
	Trine:          1,
	Sextile:        2,
	Quincunx:       3,
	SemiSextile:    3,
	SemiSquare:     3,
	Sesquiquadrate: 3,
}

var aspectAliases = map[string]AspectType{
	"conjunction":    Conjunction,
	"opposition":     Opposition,
	"square":         Square,
	"trine":          Trine,
	"sextile":        Sextile,
	"quincunx":       Quincunx,
	"inconjunct":     Quincunx,
	"semi sextile":   SemiSextile,
	"semisextile":    SemiSextile,
	"semi-sextile":   SemiSextile,
	"semi square":    SemiSquare,
	"semisquare":     SemiSquare,
	"semi-square":    SemiSquare,
	"sesquiquadrate": Sesquiquadrate,
	"sesquisquare":   Sesquiquadrate,
}

// ParseAspectType resolves a provider-supplied aspect name, ignoring case.
func ParseAspectType(raw string) (AspectType, bool) {
	t, ok := aspectAliases[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// Priority returns the strength class of the aspect, lower meaning
// stronger. Unknown types sort last.
func (t AspectType) Priority() int {
	if c, ok := aspectClass[t]; ok {
		return c
	}
	return len(aspectClass)
}
