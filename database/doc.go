// Package database provides bun connection management for mysql, postgres
// and sqlite, a model registry, versioned migrations, SQL seed files, query
// log hooks, health checks and SQL error classification.
package database
