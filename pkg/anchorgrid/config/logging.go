package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Logger levels.
const (
	LevelNone   = "none"
	LevelNormal = "normal"
	LevelDebug  = "debug"
)

// LoggerConfig configures one log destination.
type LoggerConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Destination string `yaml:"destination,omitempty" toml:"destination,omitempty"`
	// Mode is "append" or "overwrite" for file destinations.
	Mode string `yaml:"mode,omitempty" toml:"mode,omitempty"`
}

// LoggingConfig holds console and file logger settings.
type LoggingConfig struct {
	Console LoggerConfig `yaml:"console" toml:"console"`
	File    LoggerConfig `yaml:"file" toml:"file"`
}

func (conf *LoggingConfig) validate() error {
	for name, l := range map[string]LoggerConfig{"console": conf.Console, "file": conf.File} {
		switch l.Level {
		case "", LevelNone, LevelNormal, LevelDebug:
		default:
			return fmt.Errorf("%s level %q is not one of none, normal, debug", name, l.Level)
		}
	}
	switch conf.File.Mode {
	case "", "append", "overwrite":
	default:
		return fmt.Errorf("file mode %q is not one of append, overwrite", conf.File.Mode)
	}
	if enabled(conf.File.Level) && conf.File.Destination == "" {
		return fmt.Errorf("file destination is required when file logging is enabled")
	}
	return nil
}

func enabled(level string) bool {
	return level == LevelNormal || level == LevelDebug
}

// Prepare returns the program logger. Console output is split between stdout
// and stderr (errors and above), coloured only on terminals.
func (conf *LoggingConfig) Prepare() (*zap.Logger, error) {
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	var consoleCoreHP, consoleCoreLP zapcore.Core
	switch conf.Console.Level {
	case LevelNormal, LevelDebug:
		floor := zapcore.InfoLevel
		if conf.Console.Level == LevelDebug {
			floor = zapcore.DebugLevel
		}
		consoleCoreLP = zapcore.NewCore(consoleEncoder(os.Stdout), zapcore.Lock(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return floor <= lvl && lvl < zapcore.ErrorLevel
			}))
		consoleCoreHP = zapcore.NewCore(consoleEncoder(os.Stderr), zapcore.Lock(os.Stderr), highPriority)
	default:
		consoleCoreLP = zapcore.NewNopCore()
		consoleCoreHP = zapcore.NewNopCore()
	}

	fileCore := zapcore.NewNopCore()
	if enabled(conf.File.Level) {
		flags := os.O_CREATE | os.O_WRONLY
		if conf.File.Mode == "overwrite" {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_APPEND
		}
		f, err := os.OpenFile(conf.File.Destination, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("unable to access file log destination (%s): %w", conf.File.Destination, err)
		}
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		if conf.File.Level == LevelDebug {
			level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		fileCore = zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(f), level)
	}

	return zap.New(zapcore.NewTee(consoleCoreHP, consoleCoreLP, fileCore), zap.AddCaller()).Named("anchorgrid"), nil
}

func consoleEncoder(stream *os.File) zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	if EnableColorOutput(stream) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
