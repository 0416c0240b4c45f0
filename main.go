package main

import "github.com/waseemkhan00777/askify-gemini/cmd"

func main() {
	cmd.Execute()
}
