package main

import (
	"github.com/payvide/payworker/pkg/root"

	_ "github.com/payvide/payworker/pkg/console" // register commands
)

func main() {
	root.Execute()
}
