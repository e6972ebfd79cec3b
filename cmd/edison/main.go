// Command edison is the CLI entry point for the workflow engine: a thin
// cobra layer over internal/*, translating domain errors to the exit codes
// and JSON error envelopes spec §6/§7 name.
package main

func main() {
	Execute()
}
