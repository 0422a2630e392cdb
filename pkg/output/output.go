package output

import (
	"encoding/json"
	"strings"
)

const (
	// DefaultMarker appears in every line the FedTree engine logs, which carry
	// their C++ source location.
	DefaultMarker = ".cpp"
	DefaultField  = "fedtree"
)

type Normalizer struct {
	Marker string
	Field  string
}

func NewNormalizer() Normalizer {
	return Normalizer{Marker: DefaultMarker, Field: DefaultField}
}

// Normalize keeps the engine lines of the combined output, each wrapped as a
// one-field JSON record terminated by a newline. Other lines are dropped.
func (n Normalizer) Normalize(stdout, stderr string) string {
	marker, field := n.Marker, n.Field
	if marker == "" {
		marker = DefaultMarker
	}
	if field == "" {
		field = DefaultField
	}

	var sb strings.Builder
	for _, line := range strings.Split(stdout+stderr, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		record, err := json.Marshal(map[string]string{field: line})
		if err != nil {
			continue
		}
		sb.Write(record)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Outcome is the result a role entry point reports.
type Outcome struct {
	ServerIP   string `json:"server_ip"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

func NewOutcome(serverIP, stdout, stderr string, returnCode int) Outcome {
	return Outcome{
		ServerIP:   serverIP,
		Stdout:     stdout,
		Stderr:     stderr,
		ReturnCode: returnCode,
	}
}
