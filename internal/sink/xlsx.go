package sink

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// xlsxSink builds one workbook with a sheet per record type. Rows accumulate
// in memory and the file is written on Close, which is how the xlsx format
// works; prefer jsonl or csv for very large runs.
type xlsxSink struct {
	mu   sync.Mutex
	path string
	file *xlsx.File

	companies *xlsx.Sheet
	domains   *xlsx.Sheet
	emails    *xlsx.Sheet
}

func newXLSXSink(dir string) (*xlsxSink, error) {
	s := &xlsxSink{
		path: filepath.Join(dir, "leads.xlsx"),
		file: xlsx.NewFile(),
	}
	for _, sh := range []struct {
		name   string
		header []string
		dest   **xlsx.Sheet
	}{
		{"Companies", companyHeader, &s.companies},
		{"Domains", domainHeader, &s.domains},
		{"Emails", emailHeader, &s.emails},
	} {
		sheet, err := s.file.AddSheet(sh.name)
		if err != nil {
			return nil, eris.Wrapf(err, "sink: add sheet %s", sh.name)
		}
		row := sheet.AddRow()
		for _, h := range sh.header {
			row.AddCell().SetString(h)
		}
		*sh.dest = sheet
	}
	return s, nil
}

func (s *xlsxSink) addRow(sheet *xlsx.Sheet, cells []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := sheet.AddRow()
	for _, v := range cells {
		switch c := v.(type) {
		case int:
			row.AddCell().SetInt(c)
		case string:
			row.AddCell().SetString(c)
		}
	}
}

func (s *xlsxSink) WriteCompany(c model.Company) error {
	s.addRow(s.companies, []any{
		c.ListingID, c.Name, c.URL, c.Address, c.Phone, c.QueryID, c.Instance, c.Domain,
	})
	return nil
}

func (s *xlsxSink) WriteDomain(d model.Domain) error {
	s.addRow(s.domains, []any{d.Name, strings.Join(d.Companies, ";")})
	return nil
}

func (s *xlsxSink) WriteEmail(e model.EmailRecord) error {
	s.addRow(s.emails, []any{
		e.Domain, e.Address, e.FirstName, e.LastName, e.Position,
		e.Confidence, e.Sources, e.Instance,
	})
	return nil
}

func (s *xlsxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Save(s.path); err != nil {
		return eris.Wrapf(err, "sink: save %s", s.path)
	}
	return nil
}
