package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/vcf-dupe/internal/config"
)

// person is one card in a test fixture.
type person struct {
	uid, name, email, tel string
}

func (p person) card() string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\nVERSION:3.0\r\n")
	for _, kv := range [][2]string{{"UID", p.uid}, {"FN", p.name}, {"EMAIL", p.email}, {"TEL", p.tel}} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%s:%s\r\n", kv[0], kv[1])
		}
	}
	b.WriteString("END:VCARD\r\n")
	return b.String()
}

// writeVCF writes the cards to dir/name and returns the path.
func writeVCF(t *testing.T, dir, name string, people ...person) string {
	t.Helper()
	var b strings.Builder
	for _, p := range people {
		b.WriteString(p.card())
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(dir string) config.Config {
	return config.Config{
		SimilarityThreshold: 0.8,
		AutoMergeThreshold:  0.95,
		MergedDir:           filepath.Join(dir, "merged"),
		Blocking:            config.BlockingInitial,
		Workers:             2,
		External:            config.ExternalConfig{Backend: config.BackendNone},
	}
}

func newDriver(t *testing.T, opts Options) *Driver {
	t.Helper()
	d, err := New(opts)
	require.NoError(t, err)
	return d
}
