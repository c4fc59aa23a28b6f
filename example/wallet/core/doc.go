// Package core holds the pure domain of the wallet example: events,
// commands, the balance projection, and the decide functions. It depends
// on the eventstore package only for the projection fold type; there is
// no infrastructure in here.
package core
