package main

import (
	"stream-access-guard/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// Local development overrides, ignored when no .env file exists
	godotenv.Load()

	cmd.Execute()
}
