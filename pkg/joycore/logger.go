// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joycore

// Logger receives diagnostic messages with alternating key/value pairs.
//
// Example adapter over the standard library:
//
//	type StdLogger struct{}
//	func (StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (StdLogger) Warn(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
