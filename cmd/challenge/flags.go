package main

import (
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CortexLM/challenge/common/logging"
)

const (
	cfgConsumerBaseURL    = "consumer_base_url"
	cfgSessionToken       = "session_token"
	cfgJobID              = "job_id"
	cfgChallengeID        = "challenge_id"
	cfgValidatorHotkey    = "validator_hotkey"
	cfgRunServer          = "run_server"
	cfgAdminMode          = "admin_mode"
	cfgDevMode            = "dev_mode"
	cfgAllowInsecureAdmin = "allow_insecure_admin"
	cfgPort               = "port"
	cfgHost               = "host"
	cfgDbVersion          = "db_version"
	cfgConcurrency        = "concurrency"

	cfgLogFile   = "log.file"
	cfgLogFormat = "log.format"
	cfgLogLevel  = "log.level.default"
)

var rootFlags = flag.NewFlagSet("", flag.ContinueOnError)

func initRootFlags() {
	rootFlags.String(cfgConsumerBaseURL, "", "base URL of the Consumer's HTTP surface")
	rootFlags.String(cfgSessionToken, "", "evaluation session token")
	rootFlags.String(cfgJobID, "", "job id")
	rootFlags.String(cfgChallengeID, "", "challenge id")
	rootFlags.String(cfgValidatorHotkey, "", "operating validator's hotkey")
	rootFlags.Bool(cfgRunServer, true, "start the HTTP façade")
	rootFlags.Bool(cfgAdminMode, false, "admin mode (recorded in config; the admin HTTP surface is served regardless)")
	rootFlags.Bool(cfgDevMode, false, "dev mode: refuse Serving with an admin peer connected unless allow_insecure_admin is set; AEAD stays enabled")
	rootFlags.Bool(cfgAllowInsecureAdmin, false, "permit entering Serving in dev mode with an admin peer connected (UNSAFE)")
	rootFlags.Int(cfgPort, 8080, "HTTP façade listen port")
	rootFlags.String(cfgHost, "0.0.0.0", "HTTP façade listen host")
	rootFlags.Int(cfgDbVersion, 1, "migration directory version, in [1, 16]")
	rootFlags.Int(cfgConcurrency, 1, "number of jobs executed in parallel")

	rootFlags.String(cfgLogFile, "", "log file")
	logFmt := logging.FmtLogfmt
	logLvl := logging.LevelInfo
	rootFlags.Var(&logFmt, cfgLogFormat, "log format")
	rootFlags.Var(&logLvl, cfgLogLevel, "log level")

	_ = viper.BindPFlags(rootFlags)
}
