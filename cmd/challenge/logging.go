package main

import (
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/CortexLM/challenge/common/logging"
)

func initLogging() error {
	logFile := viper.GetString(cfgLogFile)

	var logLevel logging.Level
	if err := logLevel.Set(viper.GetString(cfgLogLevel)); err != nil {
		return err
	}

	var logFmt logging.Format
	if err := logFmt.Set(viper.GetString(cfgLogFormat)); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if logFile != "" {
		var err error
		if w, err = os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err != nil {
			return err
		}
	}

	return logging.Initialize(w, logFmt, logLevel, nil)
}
