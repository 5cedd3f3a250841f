package main

import "github.com/Almaroo/hs-codes-analysis/internal/cli"

func main() {
	cli.Execute()
}
