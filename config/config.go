package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
)

type Config struct {
	Theme         string   `json:"theme"`
	Backup        bool     `json:"backup"`
	FileMasks     []string `json:"file_masks"`
	ExcludeDirs   []string `json:"exclude_dirs"`
	MatchCase     bool     `json:"match_case"`
	WholeWord     bool     `json:"whole_word"`
	Regex         bool     `json:"regex"`
	HistorySize   int      `json:"history_size"`
	MaxFileSizeMB int      `json:"max_file_size_mb"`
	LogLevel      string   `json:"log_level"`
	LogFile       string   `json:"log_file"`
}

type ColorScheme struct {
	Name        string
	Background  tcell.Color
	Foreground  tcell.Color
	Selection   tcell.Color
	HeaderFg    tcell.Color
	LineNumber  tcell.Color
	Match       tcell.Color
	Marked      tcell.Color
	Applied     tcell.Color
	Failed      tcell.Color
	Changed     tcell.Color
	StatusBarBg tcell.Color
	StatusBarFg tcell.Color
	StatusMode  tcell.Color
	DialogBg    tcell.Color
	DialogFg    tcell.Color
	InputBg     tcell.Color
}

var Themes = map[string]*ColorScheme{
	"dark": {
		Name:        "Dark",
		Background:  tcell.ColorBlack,
		Foreground:  tcell.ColorWhite,
		Selection:   tcell.ColorDarkBlue,
		HeaderFg:    tcell.ColorYellow,
		LineNumber:  tcell.ColorGray,
		Match:       tcell.ColorOlive,
		Marked:      tcell.ColorWhite,
		Applied:     tcell.ColorGreen,
		Failed:      tcell.ColorRed,
		Changed:     tcell.ColorOrange,
		StatusBarBg: tcell.ColorDarkBlue,
		StatusBarFg: tcell.ColorWhite,
		StatusMode:  tcell.ColorBlue,
		DialogBg:    tcell.ColorBlack,
		DialogFg:    tcell.ColorWhite,
		InputBg:     tcell.ColorDarkBlue,
	},
	"light": {
		Name:        "Light",
		Background:  tcell.ColorWhite,
		Foreground:  tcell.ColorBlack,
		Selection:   tcell.ColorLightBlue,
		HeaderFg:    tcell.ColorBlue,
		LineNumber:  tcell.ColorGray,
		Match:       tcell.ColorYellow,
		Marked:      tcell.ColorDarkGray,
		Applied:     tcell.ColorGreen,
		Failed:      tcell.ColorRed,
		Changed:     tcell.ColorOrange,
		StatusBarBg: tcell.ColorLightBlue,
		StatusBarFg: tcell.ColorBlack,
		StatusMode:  tcell.ColorBlue,
		DialogBg:    tcell.ColorWhite,
		DialogFg:    tcell.ColorBlack,
		InputBg:     tcell.ColorLightGray,
	},
	"monokai": {
		Name:        "Monokai",
		Background:  tcell.NewRGBColor(39, 40, 34),
		Foreground:  tcell.NewRGBColor(248, 248, 242),
		Selection:   tcell.NewRGBColor(73, 72, 62),
		HeaderFg:    tcell.NewRGBColor(230, 219, 116),
		LineNumber:  tcell.NewRGBColor(144, 144, 138),
		Match:       tcell.NewRGBColor(102, 217, 239),
		Marked:      tcell.NewRGBColor(248, 248, 242),
		Applied:     tcell.NewRGBColor(166, 226, 46),
		Failed:      tcell.NewRGBColor(249, 38, 114),
		Changed:     tcell.NewRGBColor(253, 151, 31),
		StatusBarBg: tcell.NewRGBColor(30, 31, 28),
		StatusBarFg: tcell.NewRGBColor(248, 248, 242),
		StatusMode:  tcell.NewRGBColor(102, 217, 239),
		DialogBg:    tcell.NewRGBColor(30, 31, 28),
		DialogFg:    tcell.NewRGBColor(248, 248, 242),
		InputBg:     tcell.NewRGBColor(60, 60, 60),
	},
}

func Default() *Config {
	return &Config{
		Theme:         "monokai",
		Backup:        true,
		FileMasks:     []string{"*"},
		ExcludeDirs:   []string{".git", ".hg", ".svn", "node_modules", "vendor", "target", "build", "dist", "__pycache__", ".idea", ".vscode"},
		HistorySize:   20,
		MaxFileSizeMB: 100,
		LogLevel:      "info",
	}
}

func (c *Config) GetTheme() *ColorScheme {
	theme, ok := Themes[c.Theme]
	if !ok {
		return Themes["monokai"]
	}
	return theme
}

// SlogLevel maps LogLevel onto slog levels; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MaxFileSize returns the size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sweep", "settings.json")
}

// DefaultLogPath is where the log goes when neither the settings nor the
// command line name a file.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "sweep", "sweep.log")
}

// Load reads settings from path, or from ConfigPath when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
