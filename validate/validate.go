// Command validate checks pinshare configuration files. With no arguments it
// validates config.yaml and every YAML file in ../configs. It checks:
//   - The file parses and every value has the right type
//   - Ports, durations and buffer sizes are in range
//   - The sweep interval is shorter than the session lifetime
//   - ngrok has an auth token when enabled
//   - The admin API is not exposed on every interface by accident
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/pinshare/share/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	settings, err := config.Load(filePath)
	if err == nil {
		err = settings.Validate()
	}
	if err != nil {
		result.Valid = false
		for _, line := range strings.Split(err.Error(), "\n") {
			result.Errors = append(result.Errors, line)
		}
		return result
	}

	if settings.Session.SweepInterval >= settings.Session.TTL {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"session.sweep_interval %v should be shorter than session.ttl %v",
			settings.Session.SweepInterval, settings.Session.TTL))
	}

	if settings.Ngrok.Enabled && settings.Ngrok.AuthToken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "ngrok.enabled is set but no ngrok.auth_token or NGROK_AUTHTOKEN is available")
	}

	if settings.Admin.Enabled && (settings.Server.Host == "" || settings.Server.Host == "0.0.0.0") {
		result.Errors = append(result.Errors, "⚠ admin API is enabled on all interfaces")
	}

	if result.Valid {
		result.Errors = append(result.Errors,
			fmt.Sprintf("✓ Listening on %s", settings.Addr()),
			fmt.Sprintf("✓ Sessions live %v, swept every %v", settings.Session.TTL, settings.Session.SweepInterval),
			fmt.Sprintf("✓ Send buffer %d, max message %d bytes", settings.Transport.SendBuffer, settings.Transport.MaxMessageSize),
		)
	}

	return result
}

// defaultFiles lists the files validated when none are named.
func defaultFiles() ([]string, error) {
	var files []string
	for _, candidate := range []string{"config.yaml", filepath.Join("..", "config.yaml")} {
		if _, err := os.Stat(candidate); err == nil {
			files = append(files, candidate)
		}
	}
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join("..", "configs", pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = defaultFiles()
		if err != nil {
			fmt.Printf("Error finding config files: %v\n", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Println("No configuration files found")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
