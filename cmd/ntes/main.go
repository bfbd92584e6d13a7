package main

import (
	"log"

	"ntes/cmd/ntes/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	cmd.Execute()
}
