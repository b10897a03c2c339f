package main

import cmd "github.com/rohmanhakim/lore-crawler/internal/cli"

func main() {
	cmd.Execute()
}
