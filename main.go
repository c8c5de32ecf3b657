package main

import "github.com/ctyano/athenz-auth-core/cmd"

func main() {
	cmd.Execute()
}
