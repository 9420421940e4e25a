// Package sink writes accepted companies, domains, and emails to output files.
package sink

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Sink receives deduplicated pipeline results. Implementations are safe for
// concurrent use; the orchestrator writes from multiple workers.
type Sink interface {
	WriteCompany(c model.Company) error
	WriteDomain(d model.Domain) error
	WriteEmail(e model.EmailRecord) error
	Close() error
}

// New creates a sink for the given output format, writing into dir.
func New(format, dir string) (Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "sink: create output dir %s", dir)
	}
	switch format {
	case "jsonl":
		return newJSONLSink(dir)
	case "csv":
		return newCSVSink(dir)
	case "xlsx":
		return newXLSXSink(dir)
	default:
		return nil, eris.Errorf("sink: unknown output format %q", format)
	}
}
