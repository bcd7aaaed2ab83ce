package config

import "flag"

// Flags holds command-line overrides. Zero values mean "not given".
type Flags struct {
	ConfigPath   string
	Debug        bool
	HistoryLimit int
	Snap         bool
	Interpolate  bool
	LogFile      string
}

// RegisterFlags defines the shared options on fs and returns their targets.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&f.HistoryLimit, "history", 0, "Undo history depth")
	fs.BoolVar(&f.Snap, "snap", false, "Snap transforms to the grid increment")
	fs.BoolVar(&f.Interpolate, "interpolate", false, "Cut strokes at trim box faces")
	fs.StringVar(&f.LogFile, "log", "", "Write logs to this file")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.HistoryLimit > 0 {
		cfg.Editing.HistoryLimit = f.HistoryLimit
	}
	if f.Snap {
		cfg.Editing.SnapToGrid = true
	}
	if f.Interpolate {
		cfg.Editing.InterpolateTrim = true
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
}
