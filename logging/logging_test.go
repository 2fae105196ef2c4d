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
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	ConfigureOutput(&buf)
	t.Cleanup(func() {
		ConfigureOutput(os.Stdout)
		ConfigureFormat("text")
	})
	return &buf
}

func TestNamedTextOutput(t *testing.T) {
	buf := captureOutput(t)
	log := Named("TEXT_TEST")
	log.Info("hello", "b", 2, "a", "x")

	line := buf.String()
	assert.Contains(t, line, "TEXT_TEST")
	assert.Contains(t, line, " : hello a=x b=2")
	assert.Contains(t, line, "logging/logging_test.go:")
	assert.NotContains(t, line, callerKey)
}

func TestSetLoggerLevel(t *testing.T) {
	buf := captureOutput(t)
	log := Named("LEVEL_TEST")

	assert.True(t, SetLoggerLevel("LEVEL_TEST", "error"))
	log.Warn("dropped")
	assert.Empty(t, buf.String())
	log.Error("kept")
	assert.Contains(t, buf.String(), "kept")

	assert.False(t, SetLoggerLevel("NEVER_CREATED", "debug"))
	assert.Same(t, NewLogger("LEVEL_TEST"), NewLogger("LEVEL_TEST"))
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	log := Named("JSON_TEST")
	ConfigureFormat("json")
	log.Warn("disk low", "free", 3, "odd")

	var rec jsonRecord
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), buf.String())
	assert.Equal(t, "JSON_TEST", rec.Logger)
	assert.Equal(t, "warning", rec.Level)
	assert.Equal(t, "disk low", rec.Message)
	assert.EqualValues(t, 3, rec.Fields["free"])
	assert.Equal(t, "odd", rec.Fields["extra"])
	assert.True(t, strings.HasPrefix(rec.Caller, "logging/logging_test.go:"), rec.Caller)
	assert.NotContains(t, rec.Fields, callerKey)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLevel(" WARNING "))
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("LOGGING_TEST_FLAG", "false")
	assert.False(t, EnvDefaultBool("LOGGING_TEST_FLAG", true))
	assert.True(t, EnvDefaultBool("LOGGING_TEST_UNSET", true))
	t.Setenv("LOGGING_TEST_NAME", "x")
	assert.Equal(t, "x", EnvDefaultString("LOGGING_TEST_NAME", "y"))
	assert.True(t, strings.HasPrefix(LogLevelWarn.String(), "WARN"))
}
