package main

import "github.com/mvp-joe/nb/internal/cli"

func main() {
	cli.Execute()
}
