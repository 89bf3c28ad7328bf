// Command querypilot answers natural-language questions about warehouse data
// in an interactive terminal loop.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
