// Package core defines the domain model shared by the query engine.
//
// The types here are transient request/response values: an Alert row as
// read from the store, the AlertFilter and AnalyticsFilter requests, and the
// AnalyticsDataPoint produced by aggregations. Alerts are written by an
// external ingestion pipeline; nothing in this module mutates them.
//
// Grouping axes (TimeGroupBy, DimensionGroupBy) are closed enums. Code that
// turns them into SQL must go through the search package, which only ever
// emits precompiled expressions for known values.
package core
