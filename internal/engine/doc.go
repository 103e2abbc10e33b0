// Package engine coordinates the three indexes behind one entity catalog.
//
// The catalog maps stable entity ids to dense row ids and owns the row
// lifecycle: rows are allocated on insert, tombstoned on delete and become
// reusable only after the vector index has compacted them away. The vector
// index, the metadata index and the relationship graph each guard their own
// state; the engine takes their locks in a fixed order (catalog, then
// metadata, then graph) so multi-index operations cannot deadlock.
//
// Mutations are atomic within each index but not across indexes: a reader
// racing a write may observe the catalog ahead of the metadata postings for
// one row. Queries tolerate that by re-checking rows on resolution.
package engine
