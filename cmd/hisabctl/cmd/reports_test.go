package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/sheets"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want core.PartyKind
		ok   bool
	}{
		{"customer", core.Customer, true},
		{"Suppliers", core.Supplier, true},
		{"vendor", "", false},
	}
	for _, tt := range tests {
		got, err := parseKind(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("parseKind(%q) = %q, %v", tt.in, got, err)
		}
		if !tt.ok && !errors.Is(err, core.ErrInvalidKind) {
			t.Errorf("parseKind(%q) error = %v, want ErrInvalidKind", tt.in, err)
		}
	}
}

func TestWriteAging(t *testing.T) {
	rep := ledger.AgingReport{
		AsOf: core.NewDate(2024, 9, 1),
		Rows: []ledger.PartyAging{{
			Party:   core.Party{Name: "Ram Traders"},
			Buckets: ledger.Buckets{ledger.Bucket31To60: core.Rupees(1695)},
			Total:   core.Rupees(1695),
		}},
		Totals: ledger.Buckets{ledger.Bucket31To60: core.Rupees(1695)},
		Total:  core.Rupees(1695),
	}
	var buf bytes.Buffer
	writeAging(&buf, rep, false)

	out := buf.String()
	for _, want := range []string{"2024-09-01", "Ram Traders", "31-60", "1,695.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("aging output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteFiscalYear(t *testing.T) {
	rows := []sheets.Row{
		{Period: "2081-04", Month: "Shrawan", Type: core.Sale, Count: 2, Total: core.Rupees(3000)},
		{Period: "2081-05", Month: "Bhadra", Type: core.Sale, Count: 1, Total: core.Rupees(500)},
	}
	var buf bytes.Buffer
	writeFiscalYear(&buf, "2081/82", rows)

	out := buf.String()
	if !strings.HasPrefix(out, "FY 2081/82\n") {
		t.Errorf("missing heading:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "Total") || !strings.Contains(last, "3,500.00") {
		t.Errorf("totals line = %q", last)
	}
}
