package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCommand_ValidCases validates parsing of properly formatted protocol messages
// including all command types with various dependency configurations.
func TestParseCommand_ValidCases(t *testing.T) {
	tests := []struct {
		input    string
		expected *Command
	}{
		{
			input: "INDEX|package1|dep1,dep2\n",
			expected: &Command{
				Type:         IndexCommand,
				Package:      "package1",
				Dependencies: []string{"dep1", "dep2"},
			},
		},
		{
			input: "REMOVE|package1|\n",
			expected: &Command{
				Type:         RemoveCommand,
				Package:      "package1",
				Dependencies: nil,
			},
		},
		{
			input: "QUERY|package1|\n",
			expected: &Command{
				Type:         QueryCommand,
				Package:      "package1",
				Dependencies: nil,
			},
		},
		{
			input: "INDEX|package1|\n", // No dependencies
			expected: &Command{
				Type:         IndexCommand,
				Package:      "package1",
				Dependencies: nil,
			},
		},
		{
			input: "INDEX|pkg|dep1,dep2,\n", // Trailing comma
			expected: &Command{
				Type:         IndexCommand,
				Package:      "pkg",
				Dependencies: []string{"dep1", "dep2"},
			},
		},
		{
			// QUERY with non-empty deps is accepted and the field is
			// simply ignored by the server's dispatch layer.
			input: "QUERY|pkg|ignored,also-ignored\n",
			expected: &Command{
				Type:         QueryCommand,
				Package:      "pkg",
				Dependencies: []string{"ignored", "also-ignored"},
			},
		},
		{
			input: "INDEX|pkg|dep1,dep1,dep2\n", // Duplicate deps pass through the decoder untouched
			expected: &Command{
				Type:         IndexCommand,
				Package:      "pkg",
				Dependencies: []string{"dep1", "dep1", "dep2"},
			},
		},
		{
			input: "INDEX|pkg|dep,with,comma\n", // ',' in the deps field separates names
			expected: &Command{
				Type:         IndexCommand,
				Package:      "pkg",
				Dependencies: []string{"dep", "with", "comma"},
			},
		},
	}

	for _, test := range tests {
		cmd, err := ParseCommand(test.input)
		require.NoError(t, err, "ParseCommand(%q)", test.input)

		assert.Equal(t, test.expected.Type, cmd.Type, "input %q", test.input)
		assert.Equal(t, test.expected.Package, cmd.Package, "input %q", test.input)
		assert.Equal(t, test.expected.Dependencies, cmd.Dependencies, "input %q", test.input)
	}
}

// TestParseCommand_ErrorCases validates proper error handling for malformed protocol messages
// including invalid commands, missing fields, format violations, and embedded delimiters.
func TestParseCommand_ErrorCases(t *testing.T) {
	errorCases := []string{
		"INVALID|package|\n",         // Invalid command
		"INDEX||\n",                  // Empty package name
		"INDEX\n",                    // Missing parts
		"INDEX|package\n",            // Missing third part
		"INDEX|package|deps|extra\n", // Too many parts
		"",                           // Empty line
		"INDEX|package|deps",         // Missing newline
		"INDEX|pkg,with,commas|\n",   // Package name carries the dependency delimiter
	}

	for _, input := range errorCases {
		_, err := ParseCommand(input)
		assert.Error(t, err, "ParseCommand(%q) should have returned an error", input)
	}
}

// TestResponse_String validates that response codes generate correct protocol-compliant
// strings with proper newline termination.
func TestResponse_String(t *testing.T) {
	tests := []struct {
		response Response
		expected string
	}{
		{OK, "OK\n"},
		{FAIL, "FAIL\n"},
		{ERROR, "ERROR\n"},
		{Response(999), "ERROR\n"}, // Test default case
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.response.String())
	}
}

// TestCommandType_String validates string representation of command types
// including handling of unknown command values.
func TestCommandType_String(t *testing.T) {
	tests := []struct {
		cmdType  CommandType
		expected string
	}{
		{IndexCommand, "INDEX"},
		{RemoveCommand, "REMOVE"},
		{QueryCommand, "QUERY"},
		{CommandType(999), "UNKNOWN"}, // Test default case
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.cmdType.String())
	}
}
