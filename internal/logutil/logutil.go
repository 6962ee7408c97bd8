package logutil

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cloud.google.com/go/compute/metadata"
)

// onGCE asks the metadata server, which can take a while off GCE.
var onGCE = metadata.OnGCE

// ConfigureLogger sets up the global logger. Logs always go to stderr so
// they never mix with reports printed on stdout. GCE structured logging is
// only probed for when detectGCE is set.
func ConfigureLogger(level string, detectGCE bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Stack().Logger()
	if detectGCE && onGCE() {
		log.Logger = log.Hook(ErrorHook{})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.Sample(LevelSampler{Level: lvl})
	return nil
}

type ErrorHook struct{}

func (h ErrorHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}
