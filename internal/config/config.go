// Package config loads tablemerge settings from environment variables with
// defaults, validating them before any merge runs.
package config

// Config holds all application configuration.
type Config struct {
	Logging LoggingConfig
	Output  OutputConfig
	Load    LoadConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File receives logs during interactive runs; empty discards them
	File string `env:"LOG_FILE"`
}

// OutputConfig controls where merge results are written.
type OutputConfig struct {
	// Dir is the directory results are saved to (default: current directory)
	Dir string `env:"OUTPUT_DIR" default:"."`

	// Name is the result file name; .csv selects CSV output (default: merged.xlsx)
	Name string `env:"OUTPUT_NAME" default:"merged.xlsx"`

	// Sheet names the worksheet holding the result (default: Merged)
	Sheet string `env:"OUTPUT_SHEET" default:"Merged"`

	// UnmatchedSuffix is appended to the result name for the unmatched rows file
	UnmatchedSuffix string `env:"UNMATCHED_SUFFIX" default:"_unmatched"`

	// PreviewRows is how many result rows the completion screen shows (default: 5)
	PreviewRows int `env:"PREVIEW_ROWS" default:"5"`
}

// LoadConfig holds source loading settings.
type LoadConfig struct {
	// HeaderRow is the 1-indexed header row offered for new sources; 0 detects it
	HeaderRow int `env:"DEFAULT_HEADER_ROW" default:"1"`

	// Concurrency bounds how many sources are read at once (default: 4)
	Concurrency int `env:"LOAD_CONCURRENCY" default:"4"`
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Output: OutputConfig{
			Dir:             ".",
			Name:            "merged.xlsx",
			Sheet:           "Merged",
			UnmatchedSuffix: "_unmatched",
			PreviewRows:     5,
		},
		Load: LoadConfig{HeaderRow: 1, Concurrency: 4},
	}
}
