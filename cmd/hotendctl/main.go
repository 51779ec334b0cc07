// Command hotendctl is a development and ops convenience wrapped around the
// library packages: it can run an offline autotune from a recorded trace
// file, or drive a controller against a synthetic plant for manual
// sanity-checking outside of a real printer. Nothing under this tree is
// imported by the library packages themselves.
package main

func main() {
	Execute()
}
