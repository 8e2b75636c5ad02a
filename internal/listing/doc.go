// Package listing orders and filters already fetched songs for display.
//
// [NewComparator] builds the Beat, Key, Title ordering used by every listing
// surface. Each level is optional except Title, which always breaks ties. Beat and
// Key compare with an English collator; titles use a collator for the configured
// content locale.
//
// The filter helpers ([FilterByBeat], [FilterByField], [Match]) and [BeatButtons]
// build the browse and search views on top of the same normalization as the
// category index.
package listing
