// Command devmate is the terminal client for the DevMate assistant.
package main

import "github.com/devmate-dev/devmate/internal/cli"

func main() {
	cli.Execute()
}
