package main

import "github.com/zainal/disaster-siren/cmd/siren-ctl/cmd"

func main() {
	cmd.Execute()
}
