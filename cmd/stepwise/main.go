package main

import "github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/cli"

func main() {
	cli.Execute()
}
