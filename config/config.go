// Package config loads process environment from an optional .env file.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env (or ENV_FILE) into the environment. Variables already
// set win over the file. A missing file is not an error.
func LoadEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("load %s: %v", path, err)
	}
}
