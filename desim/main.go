// Command desim runs the bundled simulation models and inspects their
// traces.
package main

import "github.com/sarchlab/desim/desim/cmd"

func main() {
	cmd.Execute()
}
