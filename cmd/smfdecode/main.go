package main

import (
	"fmt"
	"os"

	"github.com/zurustar/smfdecode/pkg/app"
	"github.com/zurustar/smfdecode/pkg/fileutil"
)

func main() {
	application := app.New(fileutil.NewRealFS(""), os.Stdout)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
