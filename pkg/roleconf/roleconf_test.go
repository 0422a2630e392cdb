package roleconf

import (
	"testing"
)

func TestRenderParseRoundTrip(t *testing.T) {
	c := New()
	c.Set("n_parties", 2)
	c.Set("learning_rate", 0.1)
	c.Set("objective", "binary:logistic")
	c.Set("data", "./data/d1_0.csv")
	c.Set("ip_address", "10.0.0.5")
	c.Set("expr", "a=b")

	rendered := c.Render()
	want := "n_parties=2\nlearning_rate=0.1\nobjective=binary:logistic\ndata=./data/d1_0.csv\nip_address=10.0.0.5\nexpr=a=b\n"
	if rendered != want {
		t.Fatalf("Render() =\n%s\nwant\n%s", rendered, want)
	}

	parsed, err := Parse(rendered)
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if !parsed.Equal(c) {
		t.Errorf("Parse(Render(c)) = %v, want %v", parsed.Keys(), c.Keys())
	}
}

func TestSetKeepsPosition(t *testing.T) {
	c := New()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	if got := c.Render(); got != "a=3\nb=2\n" {
		t.Errorf("Render() = %q", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing separator", content: "n_trees\n"},
		{name: "empty key", content: "=3\n"},
		{name: "duplicate key", content: "a=1\na=2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.content); err == nil {
				t.Errorf("expected error for %q", tt.content)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		0.1: "0.1",
		1:   "1.0",
		0.3: "0.3",
	}
	for in, want := range tests {
		if got := formatFloat(in); got != want {
			t.Errorf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}
