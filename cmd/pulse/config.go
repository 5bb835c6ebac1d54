package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/fhagen/clientpulse/internal/mail"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/util"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PULSE_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigStringSlice retrieves a string slice config value
func GetConfigStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// applyLogFlags sets the process log level from the global flags
func applyLogFlags() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// eventLogLevel maps the global flags to the JSONL event log level
func eventLogLevel() report.EventLevel {
	if viper.GetBool("quiet") {
		return report.LevelWarning
	}
	if viper.GetBool("verbose") {
		return report.LevelDebug
	}
	return report.LevelInfo
}

// mailAccounts decodes the configured mailbox accounts. Credentials may be
// partial; the fetcher warns and skips incomplete accounts at fetch time.
func mailAccounts() []mail.Account {
	var accounts []mail.Account
	if err := viper.UnmarshalKey("mail.accounts", &accounts); err != nil {
		util.WarnLog("Config: unreadable mail.accounts: %v", err)
		return nil
	}
	return accounts
}
