// Package main is the entry point for the entitled server.
package main

func main() {
	Execute()
}
