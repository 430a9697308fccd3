package main

import "github.com/jmehdipour/credit-gateway/cmd"

func main() {
	cmd.Execute()
}
