package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Credential is where the API key travels.
type Credential string

const (
	CredentialHeader Credential = "apikey"
	CredentialBearer Credential = "bearer"
	CredentialQuery  Credential = "query"
)

// InstancePlacement is where the instance id travels.
type InstancePlacement string

const (
	InstanceInPath  InstancePlacement = "path"
	InstanceInBody  InstancePlacement = "body"
	InstanceOmitted InstancePlacement = "none"
)

// Variant is one candidate request shape for the send-text endpoint.
// Variants are plain data; buildRequest turns one into a Request.
type Variant struct {
	ID          string
	Credential  Credential
	Instance    InstancePlacement
	TextField   string // text | message | textMessage
	NumberField string // number | phone | to | chatId
}

func variant(c Credential, i InstancePlacement, number, text string) Variant {
	return Variant{
		ID:          string(c) + "/" + string(i) + "/" + number + "/" + text,
		Credential:  c,
		Instance:    i,
		TextField:   text,
		NumberField: number,
	}
}

// defaultOrder is the probing order. The first entries match current gateway
// releases; later ones cover older builds and forks seen in the field.
var defaultOrder = []Variant{
	variant(CredentialHeader, InstanceInPath, "number", "text"),
	variant(CredentialHeader, InstanceInPath, "number", "textMessage"),
	variant(CredentialBearer, InstanceInPath, "number", "text"),
	variant(CredentialQuery, InstanceInPath, "number", "text"),
	variant(CredentialBearer, InstanceInBody, "number", "text"),
	variant(CredentialHeader, InstanceInBody, "number", "text"),
	variant(CredentialHeader, InstanceInPath, "phone", "message"),
	variant(CredentialHeader, InstanceOmitted, "to", "text"),
	variant(CredentialHeader, InstanceInPath, "chatId", "text"),
	variant(CredentialQuery, InstanceOmitted, "phone", "message"),
	variant(CredentialBearer, InstanceOmitted, "chatId", "message"),
}

// DefaultVariants returns the probing order for cfg. Variants that need an
// instance id are dropped when none is configured.
func DefaultVariants(cfg Config) []Variant {
	out := make([]Variant, 0, len(defaultOrder))
	for _, v := range defaultOrder {
		if v.Instance != InstanceOmitted && cfg.InstanceID == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func buildRequest(cfg Config, v Variant, phone, text string) Request {
	u := strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.SendPath, "/")
	if v.Instance == InstanceInPath {
		u = strings.TrimRight(u, "/") + "/" + url.PathEscape(cfg.InstanceID)
	}
	if v.Credential == CredentialQuery {
		u += "?apikey=" + url.QueryEscape(cfg.APIKey)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Accept", "application/json")
	switch v.Credential {
	case CredentialHeader:
		h.Set("apikey", cfg.APIKey)
	case CredentialBearer:
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	body := map[string]any{}
	dest := phone
	if v.NumberField == "chatId" {
		dest = phone + "@s.whatsapp.net"
	}
	body[v.NumberField] = dest
	if v.TextField == "textMessage" {
		body[v.TextField] = map[string]string{"text": text}
	} else {
		body[v.TextField] = text
	}
	if v.Instance == InstanceInBody {
		body["instanceId"] = cfg.InstanceID
	}
	b, _ := json.Marshal(body)

	return Request{Method: http.MethodPost, URL: u, Header: h, Body: b}
}

// redact hides the API key in a URL before it is stored or logged.
func redact(rawURL, secret string) string {
	if secret == "" {
		return rawURL
	}
	return strings.ReplaceAll(strings.ReplaceAll(rawURL, url.QueryEscape(secret), "REDACTED"), secret, "REDACTED")
}
