package main

import (
	"fmt"
	"os"
	"time"
)

var debugFile *os.File

func initDebug() {
	f, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	debugFile = f
}

func logDebug(format string, args ...interface{}) {
	if debugFile != nil {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(debugFile, "["+timestamp+"] "+format+"\n", args...)
	}
}

// vprintln prints to stdout only when verbose mode is enabled.
func vprintln(a ...interface{}) {
	if debugFile != nil {
		fmt.Println(a...)
	}
}

// vprintf prints to stdout only when verbose mode is enabled.
func vprintf(format string, a ...interface{}) {
	if debugFile != nil {
		fmt.Printf(format, a...)
	}
}

// cliLogger adapts this package's debug.log + verbose-stdout convention to
// the client package's Logger interface, so the handshake driver's
// diagnostics flow through the same channel as the rest of the CLI's
// output instead of a second, disconnected logging mechanism.
type cliLogger struct{}

func (cliLogger) Debugf(format string, args ...any) {
	logDebug(format, args...)
	vprintf(format+"\n", args...)
}

func (cliLogger) Infof(format string, args ...any) {
	logDebug(format, args...)
	fmt.Printf(format+"\n", args...)
}
