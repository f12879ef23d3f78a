package main

import (
	"os"

	"redisreplica/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
