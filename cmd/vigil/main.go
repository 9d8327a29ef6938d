package main

import "github.com/vigilwaf/vigil/cmd/vigil/cmd"

func main() {
	cmd.Execute()
}
