package main

import "github.com/fragpit/envoy-auth/cmd"

func main() {
	cmd.Execute()
}
