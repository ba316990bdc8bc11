// Package logx wires up github.com/ledgerwatch/log/v3, following the
// console-plus-rotated-file handler split from turbo/logging/logging.go, but
// trimmed to the parameters this indexer's Config actually exposes instead
// of being driven by a urfave/cobra flag set.
package logx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ledgerwatch/log/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup. DirPath empty disables file logging.
type Options struct {
	ConsoleLevel log.Lvl
	DirLevel     log.Lvl
	DirPath      string
	FilePrefix   string
	JSON         bool
}

// Setup builds the root logger's handler: a terminal stream for the console
// level, and, when DirPath is set, a rotated file stream (100MB/3 backups/28
// days, matching the teacher's lumberjack.Logger defaults) at the directory
// level.
func Setup(opts Options) log.Logger {
	logger := log.Root()

	format := log.TerminalFormatNoColor()
	if opts.JSON {
		format = log.FormatFunc(jsonFormat)
	}
	consoleHandler := log.LvlFilterHandler(opts.ConsoleLevel, log.StreamHandler(os.Stderr, format))
	logger.SetHandler(consoleHandler)

	if opts.DirPath == "" {
		logger.Info("console logging only")
		return logger
	}

	if err := os.MkdirAll(opts.DirPath, 0o764); err != nil {
		logger.Warn("failed to create log dir, console logging only", "dir", opts.DirPath, "err", err)
		return logger
	}

	prefix := opts.FilePrefix
	if prefix == "" {
		prefix = "indexer"
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.Join(opts.DirPath, prefix+".log"),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
	dirHandler := log.LvlFilterHandler(opts.DirLevel, log.StreamHandler(lj, format))
	logger.SetHandler(log.MultiHandler(consoleHandler, dirHandler))
	logger.Info("logging to file system", "dir", opts.DirPath, "prefix", prefix, "level", opts.DirLevel)

	return logger
}

func jsonFormat(r *log.Record) []byte {
	return []byte(fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q}`+"\n", r.Time, r.Lvl, r.Msg))
}
