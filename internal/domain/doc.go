// Package domain models the complaint map: drawn regions, the overlays kept in
// sync with the backend, and the AI region analysis payload.
//
// # Coordinates
//
// All coordinates are WGS-84 and carried as (latitude, longitude), the order the
// browser map and the backend both use on the wire:
//
//	polygon: [[35.10, 129.05], [35.11, 129.06], [35.10, 129.07]]
//
// Geometry helpers built on paulmach/orb use orb's (x=longitude, y=latitude)
// order internally; conversion happens only in [Region.Ring].
//
// # Regions
//
// A [Region] is captured from one draw gesture and never changes afterwards.
// Each Region carries a unique ID that doubles as the generation tag of the
// analysis it spawns: a response is only applied if its Region ID matches the
// Region currently armed in the session.
//
// # Overlays
//
// Label ("word-cloud") points and heat samples are replaced as whole sets on
// every successful poll. Nothing in this package merges or diffs them.
//
// Backend wire shapes:
//
//	GET /api/map/items    → [{"text","lat","lng","size","class_name","style"}]
//	GET /api/map/heatmap  → [[lat, lng, intensity], ...]
//
// # Analysis payload
//
// [RegionAnalysisResult] is decoded from POST /api/map/analyze-region. Urgency
// is clamped to 0–100; chart categories and counts must have equal length.
// The payload is superseded wholesale by the next successful analysis and is
// never partially merged.
package domain
