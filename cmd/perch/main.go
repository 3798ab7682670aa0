// Package main is the perch command: an always-on-top overlay that never
// takes keyboard focus.
package main

func main() {
	Execute()
}
