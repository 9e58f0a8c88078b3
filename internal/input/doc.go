// Package input normalizes button edges and web calls into one ordered
// command channel.
//
// Producers never touch siren state: buttons and HTTP handlers only enqueue
// Command values here, and the coordinator consumes them one at a time.
// Ordering authority is arrival order on the channel.
package input
