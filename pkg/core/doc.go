// Package core defines the configuration records the expsql engine operates
// on: data sources, metrics, segments, dimensions, and statistics.
//
// Each entity comes in two shapes. A *Definition carries the raw,
// partially-specified fields exactly as authored in a configuration layer;
// optional fields are pointers so that "absent" and "explicitly set to the
// zero value" can be told apart during layer merging. The plain record
// (DataSource, Metric, ...) is the resolved form with every default filled
// in. Defaults are applied in exactly one place, the Resolve method of the
// corresponding definition.
package core
