package main

import "github.com/KatnessChen/MaraMap-Backend/cmd"

func main() {
	cmd.Execute()
}
