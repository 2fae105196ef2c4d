// Package pack loads compiled-in server packages. Each package registers
// its services and routes on a Host and may ship localized resources that
// the host serves through the localize middleware.
package pack
