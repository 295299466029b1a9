package main

import "github.com/sambabib/depcheck/cmd"

func main() {
	cmd.Execute()
}
