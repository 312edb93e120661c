package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blukai/lanparty/internal/logging"
	"github.com/matryer/is"
	"github.com/phuslu/log"
)

func TestFileSink(t *testing.T) {
	is := is.New(t)

	file := filepath.Join(t.TempDir(), "lanparty.log")
	logger := logging.New(logging.Config{Level: "info", File: file})
	is.Equal(logger.Level, log.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Str("player", "alice").Msg("player joined")

	data, err := os.ReadFile(file)
	is.NoErr(err)
	is.True(strings.Contains(string(data), "player joined"))
	is.True(!strings.Contains(string(data), "hidden"))
}

func TestOrSilent(t *testing.T) {
	is := is.New(t)

	logger := logging.New(logging.Config{Level: "debug"})
	is.Equal(logging.OrSilent(logger), logger)

	silent := logging.OrSilent(nil)
	is.True(silent != nil)
	is.True(silent != &log.DefaultLogger)
	silent.Info().Msg("goes nowhere")
}
