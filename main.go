package main

import "github.com/example/wordsrs/cmd"

func main() {
	cmd.Execute()
}
