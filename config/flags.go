package config

import "flag"

// Flags are the command-line overrides shared by every sparklebake command.
type Flags struct {
	ConfigPath string
	Debug      bool
	CPU        bool
	GPU        bool
	OutDir     string
	LogFile    string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.CPU, "cpu", false, "Bake position maps on the CPU")
	fs.BoolVar(&f.GPU, "gpu", false, "Bake position maps on the GPU")
	fs.StringVar(&f.OutDir, "o", "", "Output directory for exported maps")
	fs.StringVar(&f.LogFile, "log", "", "Also write logs to this file")
}

func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.CPU {
		cfg.Bake.GPU = false
	}
	if f.GPU {
		cfg.Bake.GPU = true
	}
	if f.OutDir != "" {
		cfg.Export.Dir = f.OutDir
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
}
