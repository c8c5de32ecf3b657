package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Options controls the global zerolog setup. Nil means "read from viper"
// (the cmd layer binds log.level / log.format / log.no_color flags there).
type Options struct {
	Level   string
	Format  string
	NoColor bool
}

// InitDefault sets up a console logger before flags are parsed so that very
// early failures are still readable.
func InitDefault() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger from the given options, falling back to
// viper-bound settings when opts is nil.
func Init(opts *Options) {
	if opts == nil {
		opts = &Options{
			Level:   viper.GetString("log.level"),
			Format:  viper.GetString("log.format"),
			NoColor: viper.GetBool("log.no_color"),
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch opts.Format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	}
}
