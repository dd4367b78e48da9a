// Package logrusconfig builds the logrus loggers used by the command line tools
package logrusconfig

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

var loglevel *string

// InitParam registers -loglevel on fs, or on flag.CommandLine when fs is nil
func InitParam(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	loglevel = fs.String("loglevel", logrus.InfoLevel.String(), "The loglevel to use, by name or from 0 (panic) to 6 (trace). Trace shows every register access")
}

// ParseLevel accepts a logrus level name or its number
func ParseLevel(s string) (logrus.Level, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(logrus.PanicLevel) || n > int(logrus.TraceLevel) {
			return logrus.InfoLevel, fmt.Errorf("loglevel %d is not between 0 and 6", n)
		}
		return logrus.Level(n), nil
	}
	return logrus.ParseLevel(s)
}

func NewLogger(out io.Writer, level logrus.Level) *logrus.Entry {
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50
	logger.SetFormatter(customFormatter)

	return logrus.NewEntry(logger)
}

// GetLogger returns a stderr logger. The -loglevel flag overrides level when InitParam was called.
func GetLogger(level logrus.Level) (*logrus.Entry, error) {
	if loglevel != nil {
		var err error
		level, err = ParseLevel(*loglevel)
		if err != nil {
			return nil, err
		}
	}

	return NewLogger(os.Stderr, level), nil
}
