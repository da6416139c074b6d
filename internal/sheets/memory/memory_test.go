package memory

import (
	"context"
	"testing"

	"hisab/internal/core"
	ports "hisab/internal/sheets"
)

func TestStoreReplacesExport(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportFiscalYear(ctx, "2081/82", []ports.Row{{Type: core.Sale, Count: 1}})
	if err != nil || ref != "mem:FY 2081-82:1" {
		t.Fatalf("first export: ref=%q err=%v", ref, err)
	}
	if _, err := s.ExportFiscalYear(ctx, "2081/82", []ports.Row{{Type: core.Sale, Count: 2}, {Type: core.PaymentIn, Count: 1}}); err != nil {
		t.Fatal(err)
	}

	rows, ok := s.Rows("2081/82")
	if !ok || len(rows) != 2 || rows[0].Count != 2 {
		t.Errorf("unexpected rows: %+v", rows)
	}
	if _, ok := s.Rows("2080/81"); ok {
		t.Error("unexpected export for 2080/81")
	}
	if s.Exports() != 2 {
		t.Errorf("Exports() = %d", s.Exports())
	}
}

func TestStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().ExportFiscalYear(ctx, "2081/82", nil); err == nil {
		t.Error("expected context error")
	}
}

func TestTotals(t *testing.T) {
	total := ports.Totals([]ports.Row{
		{Count: 2, Total: core.Rupees(100), VAT: core.Rupees(13)},
		{Count: 1, Total: core.Rupees(50)},
	})
	if total.Period != "Total" || total.Count != 3 || total.Total != core.Rupees(150) || total.VAT != core.Rupees(13) {
		t.Errorf("Totals = %+v", total)
	}
}
