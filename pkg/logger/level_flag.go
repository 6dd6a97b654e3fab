/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

var namedLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// StringToLevel parses a level name, or a positive logr verbosity (1, 2, ...).
// Returns defaultLevel together with an error if the value is neither.
func StringToLevel(value string, defaultLevel zapcore.Level) (zapcore.Level, error) {
	if level, ok := namedLevels[strings.ToLower(value)]; ok {
		return level, nil
	}

	verbosity, err := strconv.ParseInt(value, 10, 8)
	if err != nil || verbosity <= 0 {
		return defaultLevel, fmt.Errorf("invalid log level \"%s\"", value)
	}
	// logr V(n) maps to zap level -n.
	return zapcore.Level(-verbosity), nil
}

// LevelFlagValue is a pflag.Value that applies the log level as soon as the flag is parsed.
type LevelFlagValue struct {
	apply func(zapcore.Level)
	value string
}

func NewLevelFlagValue(apply func(zapcore.Level)) *LevelFlagValue {
	return &LevelFlagValue{apply: apply}
}

func (lfv *LevelFlagValue) Set(flagValue string) error {
	level, err := StringToLevel(flagValue, zapcore.InfoLevel)
	if err != nil {
		return err
	}
	lfv.apply(level)
	lfv.value = flagValue
	return nil
}

func (lfv *LevelFlagValue) String() string {
	return lfv.value
}

func (*LevelFlagValue) Type() string {
	return "level"
}

var _ pflag.Value = (*LevelFlagValue)(nil)
