package main

import (
	"github.com/Project-Caravana/telemetry-service/cmd"
)

func main() {
	cmd.Execute()
}
