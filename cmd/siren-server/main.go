package main

import "github.com/zainal/disaster-siren/cmd/siren-server/cmd"

func main() {
	cmd.Execute()
}
