// Command stigctl drives the stigmergic migration orchestrator: it runs the
// round-robin tick loop over a target working tree until a stop condition is
// reached, and exposes status/review/migrate-audit subcommands for operating
// on a store between runs.
package main

func main() {
	Execute()
}
