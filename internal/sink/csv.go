package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	companyHeader = []string{"listing_id", "name", "url", "address", "phone", "query_id", "instance", "domain"}
	domainHeader  = []string{"name", "companies"}
	emailHeader   = []string{"domain", "address", "first_name", "last_name", "position", "confidence", "sources", "instance"}
)

// csvSink writes three CSV files with fixed headers. Flushed on every write
// so a crash loses at most the in-flight row.
type csvSink struct {
	mu    sync.Mutex
	files []*os.File

	companies *csv.Writer
	domains   *csv.Writer
	emails    *csv.Writer
}

func newCSVSink(dir string) (*csvSink, error) {
	s := &csvSink{}
	for _, f := range []struct {
		name   string
		header []string
		dest   **csv.Writer
	}{
		{"companies.csv", companyHeader, &s.companies},
		{"domains.csv", domainHeader, &s.domains},
		{"emails.csv", emailHeader, &s.emails},
	} {
		file, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			s.Close()
			return nil, eris.Wrapf(err, "sink: create %s", f.name)
		}
		s.files = append(s.files, file)
		w := csv.NewWriter(file)
		if err := w.Write(f.header); err != nil {
			s.Close()
			return nil, eris.Wrapf(err, "sink: write %s header", f.name)
		}
		*f.dest = w
	}
	return s, nil
}

func (s *csvSink) writeRow(w *csv.Writer, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := w.Write(row); err != nil {
		return eris.Wrap(err, "sink: write row")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "sink: flush")
}

func (s *csvSink) WriteCompany(c model.Company) error {
	return s.writeRow(s.companies, []string{
		c.ListingID, c.Name, c.URL, c.Address, c.Phone, c.QueryID, c.Instance, c.Domain,
	})
}

func (s *csvSink) WriteDomain(d model.Domain) error {
	return s.writeRow(s.domains, []string{d.Name, strings.Join(d.Companies, ";")})
}

func (s *csvSink) WriteEmail(e model.EmailRecord) error {
	return s.writeRow(s.emails, []string{
		e.Domain, e.Address, e.FirstName, e.LastName, e.Position,
		strconv.Itoa(e.Confidence), strconv.Itoa(e.Sources), e.Instance,
	})
}

func (s *csvSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, w := range []*csv.Writer{s.companies, s.domains, s.emails} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = eris.Wrap(err, "sink: flush")
		}
	}
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = eris.Wrap(err, "sink: close")
		}
	}
	return firstErr
}
