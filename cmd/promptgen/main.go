package main

import "github.com/mnrezaali/ai-prompt-generator/cmd/promptgen/cmd"

func main() {
	cmd.Execute()
}
