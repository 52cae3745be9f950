// Command redwire runs the instrumented HTTP-request gateway: an MCP
// server exposing the Store, HTTP Executor, Cookie Profile Cache, and
// Mission Context Manager as tools and resources for an AI agent.
package main

import "github.com/redwire/redwire/cmd/redwire/cmd"

func main() {
	cmd.Execute()
}
