package app

import (
	cmnenv "cleanmatch_client/client/common/env"
)

type Config struct {
	Env          string
	APIBaseURL   string
	KeystorePath string
}

func LoadConfig() Config {
	return Config{
		Env:          cmnenv.String("APP_ENV", "dev"),
		APIBaseURL:   cmnenv.String("API_BASE_URL", "http://localhost:3000"),
		KeystorePath: cmnenv.String("KEYSTORE_PATH", "./data/cleanmatch.db"),
	}
}
