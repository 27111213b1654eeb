package main

import "github.com/mselser95/mm-oracle/cmd"

func main() {
	cmd.Execute()
}
