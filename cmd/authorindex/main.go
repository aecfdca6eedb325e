// Command authorindex is the author-index CLI entrypoint.
package main

import (
	cmd "github.com/rohmanhakim/author-index/internal/cli"
)

func main() {
	cmd.Execute()
}
