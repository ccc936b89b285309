// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/Thermoquad/joylink/pkg/joycore"
)

var logger joycore.Logger = stdLogger{}

// stdLogger prints library diagnostics through the log package. Debug and
// Info only appear with --verbose.
type stdLogger struct {
	debug bool
}

func (l stdLogger) Debug(msg string, kv ...interface{}) {
	if l.debug {
		logLine("DEBUG", msg, kv)
	}
}

func (l stdLogger) Info(msg string, kv ...interface{}) {
	if l.debug {
		logLine("INFO", msg, kv)
	}
}

func (stdLogger) Warn(msg string, kv ...interface{})  { logLine("WARN", msg, kv) }
func (stdLogger) Error(msg string, kv ...interface{}) { logLine("ERROR", msg, kv) }

func logLine(level, msg string, kv []interface{}) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v", kv[i])
		}
	}
	log.Printf("[%s] %s", level, b.String())
}
