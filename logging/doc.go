// Package logging provides named logrus loggers with log4j style text or JSON
// console output, and the small key/value Logger interface used across the
// module.
package logging
