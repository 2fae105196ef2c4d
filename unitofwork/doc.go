// Package unitofwork pairs a bun transaction with a repository change
// tracker. Repositories obtained from a unit of work read through its active
// transaction and stage writes that Commit flushes in one go.
package unitofwork
