package main

import (
	"flag"
	"os"
)

type flags struct {
	ConfigPath string
	EnvFile    string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseFlags reads the command line. The config path falls back to
// TOURNEY_CONFIG so containers can set it without arguments.
func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("tourney", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", getEnv("TOURNEY_CONFIG", ""), "path to YAML config file")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}
