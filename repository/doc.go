// Package repository provides a generic repository over bun. Reads, counts
// and paging run immediately; inserts, updates and deletes are staged in a
// ChangeTracker and flushed together, usually by a unit of work.
package repository
