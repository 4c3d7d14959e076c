package main

import "github.com/whatsdex/gateway/cmd"

func main() {
	cmd.Execute()
}
