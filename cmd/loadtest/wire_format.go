package main

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// MakeIndexMessage builds an INDEX request for pkg, grounded on
// _examples/.../test-suite/wire_format.go's message builders.
func MakeIndexMessage(pkg *Package) string {
	names := make([]string, 0, len(pkg.Dependencies))
	for _, dep := range pkg.Dependencies {
		names = append(names, dep.Name)
	}
	return fmt.Sprintf("INDEX|%s|%s", pkg.Name, strings.Join(names, ","))
}

// MakeRemoveMessage builds a REMOVE request for pkg.
func MakeRemoveMessage(pkg *Package) string {
	return fmt.Sprintf("REMOVE|%s|", pkg.Name)
}

// MakeQueryMessage builds a QUERY request for pkg.
func MakeQueryMessage(pkg *Package) string {
	return fmt.Sprintf("QUERY|%s|", pkg.Name)
}

var possibleInvalidCommands = []string{"BLINDEX", "REMOVES", "QUER", "LIZARD", "I"}
var possibleInvalidChars = []string{"=", "☃", " "}
var brokenMessageCounter int64

// MakeBrokenMessage returns a deterministic but varied malformed line
// the server must reject with ERROR, for the chaos-injection client.
func MakeBrokenMessage() string {
	counter := atomic.AddInt64(&brokenMessageCounter, 1)
	if counter%2 == 0 {
		invalidChar := possibleInvalidChars[counter%int64(len(possibleInvalidChars))]
		return fmt.Sprintf("INDEX|emacs%selisp-%d", invalidChar, counter)
	}
	invalidCommand := possibleInvalidCommands[counter%int64(len(possibleInvalidCommands))]
	return fmt.Sprintf("%s|package-%d|deps", invalidCommand, counter)
}
