package routing

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"chat-pipeline/internal/conversations"
	"chat-pipeline/internal/keywords"
)

// Classifier is the fallback used when no heuristic tier matched.
// It may return any label; the router accepts only valid topics.
type Classifier interface {
	Classify(ctx context.Context, message string) (topic string, confidence float64, err error)
}

const (
	DefaultHistoryLimit = 6

	historyBiasMinCount   = 2
	historyBiasBelow      = 0.5
	historyBiasConfidence = 0.6
)

// Router picks a topic for a customer message.
//
// Priority:
//  1. Purchase intent (trigger phrase plus quantity or product) -> Orders
//  2. Catalog request or product mention -> Catalog
//  3. Keyword counts per topic
//  4. Nothing matched: fallback classifier, else Support
//
// A weak result is then biased toward the topic that dominates recent history,
// and a valid caller override replaces everything.
//
// Route has no side effects besides the optional classifier call.
type Router struct {
	Table        *keywords.Table
	Classifier   Classifier
	HistoryLimit int
	Log          *slog.Logger
}

func NewRouter(table *keywords.Table, classifier Classifier, historyLimit int, log *slog.Logger) *Router {
	if table == nil {
		table = keywords.Default()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{Table: table, Classifier: classifier, HistoryLimit: historyLimit, Log: log}
}

// Route scores message. history is most-recent-first.
func (r *Router) Route(ctx context.Context, message string, history []conversations.Turn, override string) Decision {
	if topic, ok := keywords.ParseTopic(override); ok {
		return Decision{
			Topic:           topic,
			Confidence:      1,
			Source:          SourceOverride,
			KeywordsVersion: r.Table.Version,
			Reason:          "override",
		}
	}

	text := strings.ToLower(strings.TrimSpace(message))
	d := r.score(text)
	if d.Confidence == 0 && d.Source == SourceHeuristic {
		d = r.classify(ctx, message, d)
	}
	return r.applyHistoryBias(text, d, history)
}

func (r *Router) score(text string) Decision {
	t := r.Table
	d := Decision{Source: SourceHeuristic, KeywordsVersion: t.Version}

	// 1) Purchase intent
	if triggers := keywords.Match(text, t.PurchaseTriggers); len(triggers) > 0 {
		qty := t.QuantityUnit.FindString(text)
		products := keywords.Match(text, t.ProductTokens)
		if qty != "" || len(products) > 0 {
			d.Topic, d.Confidence, d.Reason = keywords.TopicOrders, 1, "purchase_intent"
			d.MatchedTerms = append(triggers, products...)
			if qty != "" {
				d.MatchedTerms = append(d.MatchedTerms, qty)
			}
			return d
		}
	}

	// 2) Catalog
	products := keywords.Match(text, t.ProductTokens)
	if req := keywords.Match(text, t.CatalogRequests); len(req) > 0 {
		d.Topic, d.Confidence, d.Reason, d.MatchedTerms = keywords.TopicCatalog, 1, "catalog_request", req
		return d
	}
	if len(products) > 0 {
		if qs := keywords.Match(text, t.ProductQuestions); len(qs) > 0 {
			d.Topic, d.Confidence, d.Reason = keywords.TopicCatalog, 1, "product_question"
			d.MatchedTerms = append(qs, products...)
			return d
		}
		d.Topic, d.Confidence, d.Reason, d.MatchedTerms = keywords.TopicCatalog, 0.75, "product_mention", products
		return d
	}

	// 3) Keyword counts; ties go to the earlier topic in keywords.Topics.
	best, bestTerms := keywords.Topic(""), []string(nil)
	for _, topic := range keywords.Topics {
		m := keywords.Match(text, t.TopicKeywords[topic])
		if len(m) > len(bestTerms) {
			best, bestTerms = topic, m
		}
	}
	if len(bestTerms) > 0 {
		d.Topic = best
		d.Confidence = math.Min(1, 0.25*float64(len(bestTerms)))
		d.MatchedTerms = bestTerms
		d.Reason = "keywords"
		return d
	}

	// 4) Nothing matched
	d.Topic, d.Confidence, d.Reason = keywords.TopicSupport, 0, "no_signal"
	return d
}

func (r *Router) classify(ctx context.Context, message string, d Decision) Decision {
	if r.Classifier == nil || strings.TrimSpace(message) == "" {
		return d
	}
	label, conf, err := r.Classifier.Classify(ctx, message)
	if err != nil {
		r.Log.Warn("intent classifier failed", "err", err)
		d.Reason = "classifier_unavailable"
		return d
	}
	topic, ok := keywords.ParseTopic(label)
	if !ok {
		r.Log.Debug("intent classifier returned unknown label", "label", label)
		d.Reason = "classifier_invalid_label"
		return d
	}
	if math.IsNaN(conf) {
		conf = 0.5
	}
	return Decision{
		Topic:           topic,
		Confidence:      math.Max(0, math.Min(1, conf)),
		Source:          SourceFallbackClassifier,
		KeywordsVersion: d.KeywordsVersion,
		Reason:          "classifier",
	}
}

func (r *Router) applyHistoryBias(text string, d Decision, history []conversations.Turn) Decision {
	if d.Confidence >= historyBiasBelow || d.Topic == keywords.TopicCatalog {
		return d
	}
	if keywords.Any(text, r.Table.StrongCatalogSignals) {
		return d
	}
	dominant, ok := dominantTopic(history, r.HistoryLimit)
	if !ok {
		return d
	}
	d.Topic = dominant
	d.Confidence = math.Max(d.Confidence, historyBiasConfidence)
	d.Source = SourceHistoryBias
	d.Reason = "history_bias"
	return d
}

// dominantTopic returns the most frequent valid topic among the first limit
// customer turns, provided it occurs at least twice. Ties go to the topic seen
// most recently.
func dominantTopic(history []conversations.Turn, limit int) (keywords.Topic, bool) {
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	counts := map[keywords.Topic]int{}
	var order []keywords.Topic
	for _, t := range history {
		if t.Operator || !t.Topic.Valid() {
			continue
		}
		topic, _ := keywords.ParseTopic(string(t.Topic))
		if counts[topic] == 0 {
			order = append(order, topic)
		}
		counts[topic]++
	}

	var best keywords.Topic
	bestN := 0
	for _, topic := range order {
		if counts[topic] > bestN {
			best, bestN = topic, counts[topic]
		}
	}
	return best, bestN >= historyBiasMinCount
}
