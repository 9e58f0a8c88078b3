// Package led drives the status LED from coordinator snapshots:
// solid while the siren loops, fast blink during an announcement, off when
// idle. The pin driver itself is an injected interface.
package led
