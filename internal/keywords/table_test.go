package keywords

import "testing"

func TestContains_RespectsWordBoundaries(t *testing.T) {
	cases := []struct {
		text, term string
		want       bool
	}{
		{"vocês tem linguiça?", "tem", true},
		{"qual item?", "tem", false},
		{"do you have linguiça?", "linguiça", true},
		{"linguiçaria", "linguiça", false},
		{"i want 2kg", "i want", true},
		{"champagne", "ham", false},
		{"", "x", false},
		{"abc", "", false},
	}
	for _, c := range cases {
		if got := Contains(c.text, c.term); got != c.want {
			t.Fatalf("Contains(%q, %q) = %v, want %v", c.text, c.term, got, c.want)
		}
	}
}

func TestParseTopic_AcceptsLegacyLabels(t *testing.T) {
	if tp, ok := ParseTopic("Pedidos"); !ok || tp != TopicOrders {
		t.Fatalf("expected Orders, got %q %v", tp, ok)
	}
	if tp, ok := ParseTopic(" catalog "); !ok || tp != TopicCatalog {
		t.Fatalf("expected Catalog, got %q %v", tp, ok)
	}
	if _, ok := ParseTopic("Operator"); ok {
		t.Fatalf("operator must not be routable")
	}
	if TopicOperator.Valid() {
		t.Fatalf("operator must not be valid")
	}
}

func TestDefault_PriceFollowUpHasNoRoutingSignal(t *testing.T) {
	tbl := Default()
	text := "and the price?"
	for _, tp := range Topics {
		if m := Match(text, tbl.TopicKeywords[tp]); len(m) > 0 {
			t.Fatalf("unexpected %s keyword match %v", tp, m)
		}
	}
	if Any(text, tbl.StrongCatalogSignals) || Any(text, tbl.ProductTokens) || Any(text, tbl.CatalogRequests) {
		t.Fatalf("unexpected catalog signal")
	}
}

func TestDefault_Regexes(t *testing.T) {
	tbl := Default()
	if !tbl.QuantityUnit.MatchString("i want 2kg of picanha") {
		t.Fatalf("expected quantity match")
	}
	m := tbl.Headcount.FindStringSubmatch("for a 30-person party")
	if len(m) != 2 || m[1] != "30" {
		t.Fatalf("expected headcount 30, got %v", m)
	}
	if tbl.DetectBusinessType("somos um restaurante") != "restaurante" {
		t.Fatalf("expected restaurante")
	}
	if tbl.DetectBusinessType("oi") != "comercio_geral" {
		t.Fatalf("expected fallback label")
	}
}
