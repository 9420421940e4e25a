package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	testCompany = model.Company{
		ListingID: "yelp-abc123",
		Name:      "Blue Bottle Coffee",
		URL:       "https://bluebottle.com/austin",
		Address:   "123 Main St",
		QueryID:   "coffee shops|austin, tx",
		Instance:  "yelp#1",
		Domain:    "bluebottle.com",
	}
	testEmail = model.EmailRecord{
		Domain:     "bluebottle.com",
		Address:    "info@bluebottle.com",
		Confidence: 92,
		Instance:   "hunter#1",
	}
)

func TestJSONLSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New("jsonl", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := s.WriteCompany(testCompany); err != nil {
		t.Fatalf("write company: %v", err)
	}
	if err := s.WriteDomain(model.Domain{Name: "bluebottle.com", Companies: []string{"yelp-abc123"}}); err != nil {
		t.Fatalf("write domain: %v", err)
	}
	if err := s.WriteEmail(testEmail); err != nil {
		t.Fatalf("write email: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "companies.jsonl"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("expected one company line")
	}
	var got model.Company
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != testCompany {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if sc.Scan() {
		t.Error("expected exactly one line")
	}
}

func TestJSONLSink_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		s, err := New("jsonl", dir)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := s.WriteEmail(testEmail); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "emails.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var lines int
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 lines after two runs, got %d", lines)
	}
}

func TestCSVSink_HeadersAndRows(t *testing.T) {
	dir := t.TempDir()
	s, err := New("csv", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.WriteEmail(testEmail); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "emails.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	if rows[0][0] != "domain" || rows[0][1] != "address" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "info@bluebottle.com" || rows[1][5] != "92" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}

func TestXLSXSink_Workbook(t *testing.T) {
	dir := t.TempDir()
	s, err := New("xlsx", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.WriteCompany(testCompany); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := xlsx.OpenFile(filepath.Join(dir, "leads.xlsx"))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	sheet, ok := f.Sheet["Companies"]
	if !ok {
		t.Fatal("missing Companies sheet")
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Cells[1].String(); got != "Blue Bottle Coffee" {
		t.Errorf("unexpected company name cell: %q", got)
	}
}

func TestSink_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := New("jsonl", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.WriteEmail(testEmail); err != nil {
				t.Errorf("write: %v", err)
			}
		}()
	}
	wg.Wait()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "emails.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var lines int
	for sc.Scan() {
		var rec model.EmailRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d corrupt: %v", lines, err)
		}
		lines++
	}
	if lines != 20 {
		t.Errorf("expected 20 intact lines, got %d", lines)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New("parquet", t.TempDir()); err == nil {
		t.Error("expected error for unknown format")
	}
}
