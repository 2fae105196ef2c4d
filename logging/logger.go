/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	registryMu    sync.RWMutex
	registry                = map[string]*logrus.Logger{}
	baseLevel               = ParseLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleFormat           = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	consoleOut    io.Writer = os.Stdout
)

// NewLogger returns the named logrus logger, creating and registering it on
// first use. Every logger writes through the console formatter selected by
// CONSOLE_LOG_FORMAT ("text" or "json"); CONSOLE_LOG_COLOR=false drops the
// ANSI colors of the text format.
func NewLogger(name string) *logrus.Logger {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if ok {
		return l
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok = registry[name]; ok {
		return l
	}
	l = logrus.New()
	l.SetOutput(consoleOut)
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, consoleFormat))
	registry[name] = l
	return l
}

func newFormatter(name, format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &JSONFormatter{LoggerName: name}
	}
	return &TextFormatter{LoggerName: name, NameWidth: 10, Color: EnvDefaultBool("CONSOLE_LOG_COLOR", true)}
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLevel sets the level of every registered logger and of loggers
// created afterwards.
func ConfigureLevel(level string) {
	lvl := ParseLevel(level)
	registryMu.Lock()
	defer registryMu.Unlock()
	baseLevel = lvl
	for _, l := range registry {
		l.SetLevel(lvl)
	}
}

// ConfigureFormat switches the console format of every registered logger.
func ConfigureFormat(format string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	consoleFormat = format
	for name, l := range registry {
		l.SetFormatter(newFormatter(name, format))
	}
}

// ConfigureOutput redirects every registered logger, mostly useful in tests.
func ConfigureOutput(w io.Writer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	consoleOut = w
	for _, l := range registry {
		l.SetOutput(w)
	}
}

// SetLoggerLevel changes the level of one named logger. It reports false when
// no logger with that name has been created.
func SetLoggerLevel(name string, level string) bool {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLevel(level))
	return true
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
