package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/authctl"
)

func main() {
	if err := authctl.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
