// Package types defines the value model shared across the gridsync engine:
// column types and value coercion, table descriptors with their natural keys,
// view/store column maps, cell style tokens, and the standard errors returned
// by the query, cache, and store layers.
package types
