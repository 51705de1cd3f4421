package main

import "github.com/joho/godotenv"

func loadEnvFiles() {
	// The runtime environment wins over both files.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

func validCommand(cmd string) bool {
	switch cmd {
	case "up", "down", "reset", "status", "version":
		return true
	}
	return false
}
