package main

import "github.com/mselser95/prediction-arb/cmd"

func main() {
	cmd.Execute()
}
