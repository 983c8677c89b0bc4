package campaigns

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
)

// VariableCatalogue lists the variables BuildVariables fills, by group.
var VariableCatalogue = map[string][]string{
	"customer": {"customer_name", "customer_phone", "business_type"},
	"product":  {"product_interest", "product_category"},
	"offer":    {"discount_percent", "offer_validity_days", "offer_valid_until", "estimated_value"},
	"delivery": {"delivery_window", "delivery_deadline"},
	"company":  {"company_name", "company_phone"},
}

const (
	baseDiscount      = 5.0
	discountPerPoint  = 1.5
	maxDiscount       = 15.0
	perPersonEstimate = 35
)

var productCategories = map[string]string{
	"picanha": "bovinos", "maminha": "bovinos", "fraldinha": "bovinos", "costela": "bovinos",
	"alcatra": "bovinos", "contrafilé": "bovinos", "contrafile": "bovinos", "cupim": "bovinos",
	"carne": "bovinos", "carnes": "bovinos", "boi": "bovinos", "beef": "bovinos", "steak": "bovinos",
	"ribs": "bovinos", "meat": "bovinos",
	"frango": "aves", "galinha": "aves", "aves": "aves", "chicken": "aves",
	"porco": "suínos", "linguiça": "suínos", "linguica": "suínos", "bacon": "suínos",
	"pork": "suínos", "sausage": "suínos",
	"peixe": "peixes", "peixes": "peixes", "fish": "peixes",
	"frios": "frios", "queijo": "frios", "queijos": "frios", "presunto": "frios",
	"mortadela": "frios", "salame": "frios", "cheese": "frios", "ham": "frios",
}

type Company struct {
	Name  string
	Phone string
}

type VariableInput struct {
	Phone        string
	CustomerName string
	Message      string
	Insight      *leads.Insight
	Company      Company
	Now          time.Time
	Location     *time.Location
	Table        *keywords.Table
}

// BuildVariables fills the catalogue from customer data, product mentions in
// the message and the lead insight. A higher score gives a larger discount and
// higher urgency a shorter delivery window.
func BuildVariables(in VariableInput) map[string]string {
	table := in.Table
	if table == nil {
		table = keywords.Default()
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	now := in.Now.In(loc)
	text := strings.ToLower(in.Message)

	v := map[string]string{
		"customer_phone": in.Phone,
		"company_name":   in.Company.Name,
		"company_phone":  in.Company.Phone,
	}

	v["customer_name"] = strings.TrimSpace(in.CustomerName)
	if v["customer_name"] == "" {
		v["customer_name"] = "cliente"
	}

	v["business_type"] = table.DetectBusinessType(text)
	if in.Insight != nil && in.Insight.BusinessType != "" {
		v["business_type"] = in.Insight.BusinessType
	}

	v["product_interest"], v["product_category"] = "nossos produtos", "carnes e frios"
	if products := keywords.Match(text, table.ProductTokens); len(products) > 0 {
		v["product_interest"] = products[0]
		if c, ok := productCategories[products[0]]; ok {
			v["product_category"] = c
		}
	}

	discount := math.Min(maxDiscount, baseDiscount+discountPerPoint*float64(in.Insight.ScoreOf()))
	v["discount_percent"] = decimalComma(discount)

	validity := 15
	window := 48 * time.Hour
	if in.Insight != nil {
		switch in.Insight.Urgency {
		case leads.UrgencyHigh:
			validity, window = 7, 4*time.Hour
		case leads.UrgencyMedium:
			window = 24 * time.Hour
		}
		if in.Insight.Headcount != nil {
			v["estimated_value"] = formatBRL(*in.Insight.Headcount * perPersonEstimate)
		}
	}
	v["offer_validity_days"] = strconv.Itoa(validity)
	v["offer_valid_until"] = now.AddDate(0, 0, validity).Format("02/01/2006")
	v["delivery_window"] = fmt.Sprintf("%dh", int(window.Hours()))
	v["delivery_deadline"] = now.Add(window).Format("02/01 15:04")
	return v
}

func decimalComma(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', -1, 64), ".", ",", 1)
}

// formatBRL formats whole reais as "R$ 1.050,00".
func formatBRL(reais int) string {
	s := strconv.Itoa(reais)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "R$ " + b.String() + ",00"
}
