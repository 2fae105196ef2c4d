// Package localize provides per module localization: culture tagged
// resource files, a request culture middleware built on x/text language
// matching, localizers with module then shared fallback and an optional
// hot reload watcher.
package localize
