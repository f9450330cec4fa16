package mcpserver

// ChartSchemaContract describes the natal chart document returned by the
// chart tools, for LLM consumers that interpret or summarize charts.
const ChartSchemaContract = `# AstroSvitla Chart Document Schema

Every chart returned by ` + "`" + `generate_chart` + "`" + ` and ` + "`" + `get_chart` + "`" + ` is a JSON
document with this structure.

## Structure

` + "```" + `json
{
  "fingerprint": "9f2a...",           // 32 hex chars; identity of the birth query
  "query": {
    "year": 1990, "month": 3, "day": 21,
    "hour": 11, "minute": 30,
    "latitude": 50.4501, "longitude": 30.5234,
    "timezone_offset": 2,
    "house_system": "placidus"
  },
  "planets": [
    {"planet": "Sun", "sign": "Aries", "longitude": 0.5, "house": 1, "retrograde": false}
  ],
  "houses": [
    {"number": 1, "sign": "Aries", "cusp_longitude": 15.0}
  ],
  "rulers": [
    {"house": 1, "ruler": "Mars", "ruler_sign": "Capricorn", "ruler_house": 10, "aspects": []}
  ],
  "aspects": [
    {"first": "Sun", "second": "Moon", "type": "Square", "orb": 4.8, "separation": 94.8}
  ],
  "points": [
    {"name": "Ascendant", "sign": "Aries", "longitude": 15.0, "house": 1}
  ],
  "image": {"id": "uuid", "format": "svg"},   // absent when no wheel was rendered
  "generated_at": "2024-03-15T12:00:00Z"
}
` + "```" + `

## Semantics

1. **Fingerprint** is derived from the birth data and house system only.
   The same birth query always yields the same fingerprint, so charts
   can be re-requested without spending provider credits.
2. **Planets** always contain the ten classical bodies plus the lunar
   Node, each placed in one of the twelve signs and houses. ` + "`" + `longitude` + "`" + `
   is ecliptic, 0-360 degrees.
3. **Houses** are exactly twelve cusps, numbered 1-12.
4. **Rulers** give the traditional ruler of each house cusp sign, where
   the ruler sits, and the aspects that ruler makes.
5. **Aspects** cover Conjunction, Sextile, Square, Trine, Opposition,
   and the minor aspects the provider reports. ` + "`" + `orb` + "`" + ` is the deviation
   from exactness in degrees.
6. **Points** carry the Ascendant and Midheaven.
7. **house_system** is one of: placidus, koch, equal_house, topocentric,
   poryphry, whole_sign.

## Quota

- Each generated chart costs two provider requests (data + wheel).
- At most five provider requests fit in any sliding sixty second
  window; ` + "`" + `generate_chart` + "`" + ` reports how long to wait when throttled.
- Cached charts are served without touching the provider. Prefer
  ` + "`" + `get_chart` + "`" + ` / ` + "`" + `list_charts` + "`" + ` over regenerating, and use
  ` + "`" + `monthly_usage` + "`" + ` to watch the credit budget.
`
