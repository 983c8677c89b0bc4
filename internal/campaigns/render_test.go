package campaigns

import (
	"context"
	"strings"
	"testing"
	"time"

	"chat-pipeline/internal/leads"
)

func TestRender_AllVariablesResolved(t *testing.T) {
	vars := BuildVariables(VariableInput{
		Phone: "5511987654321", CustomerName: "Ana", Message: "picanha para festa",
		Insight: &leads.Insight{Score: 8, Urgency: leads.UrgencyHigh, Headcount: intPtr(30)},
		Company: Company{Name: "3A Frios", Phone: "551130000000"},
		Now:     time.Unix(1700000000, 0),
	})
	for _, tpl := range DefaultTemplates() {
		for _, s := range []string{tpl.Title, tpl.Body} {
			if out := Render(s, vars); len(Placeholders(out)) != 0 {
				t.Fatalf("%s: unresolved placeholders in %q", tpl.ID, out)
			}
		}
	}
}

func TestRender_MissingVariableLeftAsIs(t *testing.T) {
	out := Render("Oi {customer_name}, {discount_percent}% em {product_interest}! {not a var}", map[string]string{
		"customer_name":    "Ana",
		"product_interest": "picanha",
	})
	if out != "Oi Ana, {discount_percent}% em picanha! {not a var}" {
		t.Fatalf("unexpected %q", out)
	}
	if p := Placeholders(out); len(p) != 1 || p[0] != "discount_percent" {
		t.Fatalf("expected exactly one unresolved placeholder, got %v", p)
	}
}

func TestBuildVariables(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	v := BuildVariables(VariableInput{
		Phone:   "5511",
		Message: "Preciso de linguiça para o restaurante",
		Insight: &leads.Insight{Score: 3, Urgency: leads.UrgencyMedium},
		Now:     now,
	})
	want := map[string]string{
		"customer_name":       "cliente",
		"business_type":       "restaurante",
		"product_interest":    "linguiça",
		"product_category":    "suínos",
		"discount_percent":    "9,5",
		"offer_validity_days": "15",
		"offer_valid_until":   "29/11/2023",
		"delivery_window":     "24h",
		"delivery_deadline":   "15/11 22:13",
	}
	for k, w := range want {
		if v[k] != w {
			t.Fatalf("%s = %q, want %q", k, v[k], w)
		}
	}
	if _, ok := v["estimated_value"]; ok {
		t.Fatalf("estimated_value needs a headcount")
	}

	v = BuildVariables(VariableInput{Insight: &leads.Insight{Score: 10, Urgency: leads.UrgencyHigh, Headcount: intPtr(30)}, Now: now})
	if v["discount_percent"] != "15" || v["delivery_window"] != "4h" || v["offer_validity_days"] != "7" || v["estimated_value"] != "R$ 1.050,00" {
		t.Fatalf("unexpected %+v", v)
	}
	v = BuildVariables(VariableInput{Now: now})
	if v["discount_percent"] != "5" || v["delivery_window"] != "48h" {
		t.Fatalf("unexpected defaults %+v", v)
	}
}

func TestSendWindow_NextOpen(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, time.UTC) }
	cases := []struct {
		w      SendWindow
		now    time.Time
		inside bool
		open   time.Time
	}{
		{SendWindow{}, day(3, 0), true, day(3, 0)},
		{SendWindow{"08:00", "18:00"}, day(9, 0), true, day(9, 0)},
		{SendWindow{"08:00", "18:00"}, day(6, 30), false, day(8, 0)},
		{SendWindow{"08:00", "18:00"}, day(18, 0), false, day(8, 0).AddDate(0, 0, 1)},
		{SendWindow{"20:00", "02:00"}, day(1, 0), true, day(1, 0)},
		{SendWindow{"20:00", "02:00"}, day(12, 0), false, day(20, 0)},
	}
	for i, c := range cases {
		open, inside := c.w.NextOpen(c.now, time.UTC)
		if inside != c.inside || !open.Equal(c.open) {
			t.Fatalf("case %d: got %v %v, want %v %v", i, open, inside, c.open, c.inside)
		}
	}

	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 10:00 UTC is 07:00 in Sao Paulo
	open, inside := SendWindow{"08:00", "18:00"}.NextOpen(day(10, 0), sp)
	if inside || !open.Equal(day(11, 0)) {
		t.Fatalf("unexpected %v %v", open, inside)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	s.SendWindow = SendWindow{Start: "25:00", End: "10:00"}
	if err := s.validate(); err == nil {
		t.Fatalf("expected invalid window")
	}
	s = DefaultSettings()
	s.Types["bogus"] = TypeSettings{}
	if err := s.validate(); err == nil {
		t.Fatalf("expected invalid type")
	}
}

func TestMemoryTemplates_DefaultIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTemplates()
	a, _ := m.Save(ctx, Template{Type: TypeCrossSell, Name: "a", Body: "a", Active: true, Default: true})
	b, _ := m.Save(ctx, Template{Type: TypeCrossSell, Name: "b", Body: "b {customer_name}", Active: true, Default: true})
	other, _ := m.Save(ctx, Template{Type: TypeSpecialEvent, Name: "c", Body: "c", Active: true, Default: true})

	if got, _ := m.Get(ctx, a.ID); got.Default {
		t.Fatalf("previous default must be cleared")
	}
	if got, _ := m.Get(ctx, b.ID); !got.Default || strings.Join(got.Variables, ",") != "customer_name" {
		t.Fatalf("unexpected %+v", got)
	}
	if got, _ := m.Get(ctx, other.ID); !got.Default {
		t.Fatalf("defaults of other types are untouched")
	}
	if _, err := m.Save(ctx, Template{Type: "bogus", Name: "x", Body: "x"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestMemoryRepo_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		typ := TypeCrossSell
		if i%2 == 0 {
			typ = TypeSpecialEvent
		}
		_ = r.Append(ctx, Record{ID: string(rune('a' + i)), Type: typ, Phone: "1", State: StateSent, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page, total, _ := r.List(ctx, Filter{Type: TypeSpecialEvent, Limit: 2})
	if total != 3 || len(page) != 2 || page[0].ID != "e" || page[1].ID != "c" {
		t.Fatalf("unexpected page %+v total=%d", page, total)
	}
	page, _, _ = r.List(ctx, Filter{Type: TypeSpecialEvent, Limit: 2, Offset: 2})
	if len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("unexpected second page %+v", page)
	}
	page, total, _ = r.List(ctx, Filter{From: base.Add(time.Minute), To: base.Add(3 * time.Minute)})
	if total != 2 || page[0].ID != "c" {
		t.Fatalf("unexpected range %+v", page)
	}
	if err := r.Append(ctx, Record{}); err == nil {
		t.Fatalf("expected invalid record")
	}
}

func intPtr(n int) *int { return &n }
