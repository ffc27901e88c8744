package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeIndexMessage(t *testing.T) {
	all := NewAllPackages()
	base := all.Named("base")
	app := all.Named("app")
	app.AddDependency(base)

	assert.Equal(t, "INDEX|base|", MakeIndexMessage(base))
	assert.Equal(t, "INDEX|app|base", MakeIndexMessage(app))
}

func TestMakeRemoveMessage(t *testing.T) {
	pkg := NewAllPackages().Named("base")
	assert.Equal(t, "REMOVE|base|", MakeRemoveMessage(pkg))
}

func TestMakeQueryMessage(t *testing.T) {
	pkg := NewAllPackages().Named("base")
	assert.Equal(t, "QUERY|base|", MakeQueryMessage(pkg))
}

func TestMakeBrokenMessage_NeverEmpty(t *testing.T) {
	for i := 0; i < 20; i++ {
		msg := MakeBrokenMessage()
		assert.NotEmpty(t, msg)
	}
}
