package output_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/absmach/fedtree/pkg/output"
)

func TestNormalizeEngineMarker(t *testing.T) {
	n := output.Normalizer{Marker: "[engine]", Field: "engine"}
	log := n.Normalize("[engine] iter 1\nnoise line\n", "")

	lines := strings.Split(strings.TrimSuffix(log, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), log)
	}

	var record map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if len(record) != 1 || record["engine"] != "[engine] iter 1" {
		t.Errorf("record = %v", record)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	stdout := "2024-01-01 INFO booster.cpp:42 : tree 0 built\nconnecting...\n"
	stderr := "2024-01-01 WARN party.cpp:7 : slow peer\nsegment noise"

	got := output.NewNormalizer().Normalize(stdout, stderr)
	want := `{"fedtree":"2024-01-01 INFO booster.cpp:42 : tree 0 built"}` + "\n" +
		`{"fedtree":"2024-01-01 WARN party.cpp:7 : slow peer"}` + "\n"
	if got != want {
		t.Errorf("Normalize() =\n%s\nwant\n%s", got, want)
	}

	if got := (output.Normalizer{}).Normalize("x.cpp", ""); got != `{"fedtree":"x.cpp"}`+"\n" {
		t.Errorf("zero normalizer must use defaults, got %q", got)
	}
}

func TestNormalizeNoMatch(t *testing.T) {
	if got := output.NewNormalizer().Normalize("hello\nworld\n", ""); got != "" {
		t.Errorf("expected empty log, got %q", got)
	}
}

func TestOutcomeJSON(t *testing.T) {
	data, err := json.Marshal(output.NewOutcome("10.0.0.1", "out", "err", 0))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"server_ip":"10.0.0.1","stdout":"out","stderr":"err","returncode":0}`
	if string(data) != want {
		t.Errorf("Outcome JSON = %s, want %s", data, want)
	}
}
