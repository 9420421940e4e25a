package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// jsonlSink appends one JSON object per line to companies.jsonl,
// domains.jsonl, and emails.jsonl. Append mode, so interrupted runs can
// resume into the same files.
type jsonlSink struct {
	mu        sync.Mutex
	companies *os.File
	domains   *os.File
	emails    *os.File
}

func newJSONLSink(dir string) (*jsonlSink, error) {
	s := &jsonlSink{}
	for _, f := range []struct {
		name string
		dest **os.File
	}{
		{"companies.jsonl", &s.companies},
		{"domains.jsonl", &s.domains},
		{"emails.jsonl", &s.emails},
	} {
		file, err := os.OpenFile(filepath.Join(dir, f.name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.Close()
			return nil, eris.Wrapf(err, "sink: open %s", f.name)
		}
		*f.dest = file
	}
	return s, nil
}

func (s *jsonlSink) writeLine(f *os.File, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sink: marshal")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return eris.Wrap(err, "sink: write")
	}
	return nil
}

func (s *jsonlSink) WriteCompany(c model.Company) error {
	return s.writeLine(s.companies, c)
}

func (s *jsonlSink) WriteDomain(d model.Domain) error {
	return s.writeLine(s.domains, d)
}

func (s *jsonlSink) WriteEmail(e model.EmailRecord) error {
	return s.writeLine(s.emails, e)
}

func (s *jsonlSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range []*os.File{s.companies, s.domains, s.emails} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = eris.Wrap(err, "sink: close")
		}
	}
	return firstErr
}
