package config

import (
	"flag"
	"log/slog"
	"time"
)

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	GenerateCert bool
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// Config holds the hub configuration
type Config struct {
	SeedDir         string
	Port            int
	PublishInterval time.Duration
	LogLevel        slog.Level
	TLS             TLSConfig
	CORS            CORSConfig
}

// ParseFlags parses command line arguments and merges them with the config file
func ParseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("braidtrack", flag.ContinueOnError)

	// Define flags
	configFlag := fs.String("config", "config.yml", "Path to configuration file")
	generateConfigFlag := fs.Bool("generate-config", false, "Generate a default configuration file")
	configFilePathFlag := fs.String("config-path", "config.yml", "Path where config file should be generated")

	// Simple flags for overriding config file
	dirFlag := fs.String("d", "", "Directory containing seed files (overrides config)")
	portFlag := fs.Int("p", 0, "Port to listen on (overrides config)")
	intervalFlag := fs.Duration("interval", 0, "Publish interval (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Handle config file generation
	if *generateConfigFlag {
		slog.Info("Generating default configuration file", "path", *configFilePathFlag)
		if err := SaveDefaultConfig(*configFilePathFlag); err != nil {
			return nil, err
		}
	}

	// Load configuration from file
	config, err := LoadConfig(*configFlag)
	if err != nil {
		slog.Warn("Could not load config file, using defaults", "err", err)
		config, _ = LoadConfig("")
	}

	// Override with command line flags if provided
	if *dirFlag != "" {
		config.SeedDir = *dirFlag
	}
	if *portFlag != 0 {
		config.Port = *portFlag
	}
	if *intervalFlag > 0 {
		config.PublishInterval = *intervalFlag
	}

	return config, nil
}
