package harness

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Case is one message sent to the chat endpoint.
type Case struct {
	Message string `yaml:"message"`
	Note    string `yaml:"note,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {message, note} map.
func (c *Case) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Message = value.Value
		return nil
	}
	type plain Case
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Case(p)
	return nil
}

// DefaultCases is the built-in run against the filesystem agent.
func DefaultCases() []Case {
	return []Case{
		{Message: "Hello, can you introduce yourself?"},
		{Message: `Create a file called hello.txt with content "Hello World"`},
		{Message: "List all files in the current directory"},
		{Message: "Read the content of hello.txt"},
		{Message: "What is 2+2?"},
		{Message: "Create a directory called testdir"},
		{Message: `Create a file testdir/note.txt with content "This is a note"`},
		{Message: "List files in testdir"},
	}
}

// LoadCases reads an ordered list of cases from a YAML file.
func LoadCases(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	return ParseCases(raw)
}

// ParseCases decodes a YAML sequence of cases.
func ParseCases(raw []byte) ([]Case, error) {
	var cases []Case
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, errors.New("no test cases defined")
	}
	return cases, nil
}
