package main

import "github.com/zqzqsb/faultinj/internal/cli"

func main() {
	cli.Execute()
}
