// Package broadcast orchestrates permission-filtered event fan-out: for
// each registered subscription strategy it enumerates rooms, gates each
// room on its ability, shapes the payload per viewer context, and emits to
// the admitted rooms through the local hub and the cross-process relay.
// A failure in one room or strategy never blocks the others.
package broadcast
