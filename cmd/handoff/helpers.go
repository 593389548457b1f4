package main

import (
	"fmt"
	"os"
)

func exitf(format string, args ...any) {
	fmt.Printf(format, args...)
	os.Exit(1)
}
