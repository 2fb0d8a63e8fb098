// Package main provides the SpockBot command line client.
package main

func main() {
	Execute()
}
