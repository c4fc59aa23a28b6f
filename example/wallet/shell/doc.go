// Package shell adapts the wallet domain to the event store: it maps
// domain events to and from their storable wire shape.
package shell
