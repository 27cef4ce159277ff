// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package knowledge implements the rule-based side of the support agent:
// topic detection over an ordered keyword table, a quick-reply fast path,
// canned replies, suggestion chips, and the escalation predicate.
package knowledge

import (
	"regexp"
	"strings"
)

// =============================================================================
// TOPICS
// =============================================================================

// Topic is a support topic the agent knows how to answer.
type Topic string

const (
	TopicPlans   Topic = "plans"
	TopicBalance Topic = "balance"
	TopicBilling Topic = "billing"
	TopicRoaming Topic = "roaming"
	TopicNetwork Topic = "network"
	TopicSupport Topic = "support"
	TopicDevice  Topic = "device"
	TopicUnknown Topic = "unknown"
)

// String returns the string representation of the topic.
func (t Topic) String() string {
	return string(t)
}

// =============================================================================
// KNOWLEDGE TABLE
// =============================================================================

// Entry is one row of the knowledge table.
type Entry struct {
	Topic       Topic
	Desc        string
	Reply       string
	Suggestions []string
	Keywords    []string
}

// entries is evaluated in order during detection. First keyword hit wins,
// so overlapping keywords (e.g. "agent" also being an escalation word)
// resolve deterministically.
var entries = []Entry{
	{
		Topic: TopicPlans,
		Desc:  "Plans and upgrades",
		Reply: "We offer SIM‑only and device plans with flexible data. " +
			"Popular choices include 25GB, 100GB and Unlimited. You can upgrade any time in your account.",
		Suggestions: []string{"Show plan options", "How to upgrade", "What is unlimited?"},
		Keywords:    []string{"plan", "plans", "upgrade", "contract", "tariff", "unlimited"},
	},
	{
		Topic:       TopicBalance,
		Desc:        "Data and usage",
		Reply:       "Check remaining data and minutes in the app or text BALANCE to 12345.",
		Suggestions: []string{"Check data balance", "Data add-ons", "Usage alerts"},
		Keywords:    []string{"data", "balance", "usage", "allowance", "left"},
	},
	{
		Topic:       TopicBilling,
		Desc:        "Bills and payments",
		Reply:       "Bills are monthly. Pay by card or Direct Debit. For a breakdown, open Billing in your account.",
		Suggestions: []string{"View my bill", "Change payment method", "Late payment"},
		Keywords:    []string{"bill", "billing", "payment", "invoice", "charge"},
	},
	{
		Topic: TopicRoaming,
		Desc:  "Roaming and international",
		Reply: "Roaming works on most plans. In the EU you can usually use your allowance like at home. " +
			"For other countries, check our roaming page for rates.",
		Suggestions: []string{"EU roaming", "Roaming rates", "Enable roaming"},
		Keywords:    []string{"roam", "roaming", "international", "abroad", "travel"},
	},
	{
		Topic:       TopicNetwork,
		Desc:        "Coverage and issues",
		Reply:       "Share your postcode and device model and I’ll check coverage and any local issues.",
		Suggestions: []string{"Coverage map", "Report an outage", "Network reset steps"},
		Keywords:    []string{"signal", "coverage", "network", "no service", "5g", "4g"},
	},
	{
		Topic:       TopicSupport,
		Desc:        "Live support",
		Reply:       "I can connect you with a specialist. Advisors are available 8am–8pm. Should I connect you?",
		Suggestions: []string{"Talk to an agent", "Open a ticket", "Live chat hours"},
		Keywords:    []string{"agent", "human", "person", "support", "advisor", "representative"},
	},
	{
		Topic:       TopicDevice,
		Desc:        "Devices and SIM",
		Reply:       "For SIM swap, eSIM setup, or lost/stolen devices, I can guide you through the steps in your account.",
		Suggestions: []string{"SIM swap", "Set up eSIM", "Lost my phone"},
		Keywords:    []string{"device", "phone", "sim", "esim", "lost", "stolen"},
	},
}

// quickReplies maps suggestion chips to topics, bypassing keyword detection
// when the user taps a chip verbatim.
var quickReplies = map[string]Topic{
	"Show plan options":     TopicPlans,
	"How to upgrade":        TopicPlans,
	"What is unlimited?":    TopicPlans,
	"Check data balance":    TopicBalance,
	"Data add-ons":          TopicBalance,
	"Usage alerts":          TopicBalance,
	"View my bill":          TopicBilling,
	"Change payment method": TopicBilling,
	"Late payment":          TopicBilling,
	"EU roaming":            TopicRoaming,
	"Roaming rates":         TopicRoaming,
	"Enable roaming":        TopicRoaming,
	"Coverage map":          TopicNetwork,
	"Report an outage":      TopicNetwork,
	"Network reset steps":   TopicNetwork,
	"Talk to an agent":      TopicSupport,
	"Open a ticket":         TopicSupport,
	"Live chat hours":       TopicSupport,
	"SIM swap":              TopicDevice,
	"Set up eSIM":           TopicDevice,
	"Lost my phone":         TopicDevice,
}

// GeneralSuggestions is shown alongside topic chips in open mode and as the
// lead-in for unknown topics.
var GeneralSuggestions = []string{
	"Ask me anything",
	"Tell me more",
	"Something else",
}

// unknownTopicSuggestions is the chip set offered when no topic matched.
var unknownTopicSuggestions = []string{
	"Show plan options",
	"Check data balance",
	"View my bill",
	"Roaming rates",
	"Coverage map",
	"Talk to an agent",
}

// escalationWords trigger hand-off regardless of the detected topic.
var escalationWords = []string{"agent", "human", "person", "escalate"}

// =============================================================================
// DETECTION
// =============================================================================

// keywordPatterns are compiled once at init. Word-boundary anchored so
// "plant" does not match "plan".
var keywordPatterns = func() map[Topic][]*regexp.Regexp {
	m := make(map[Topic][]*regexp.Regexp, len(entries))
	for _, e := range entries {
		patterns := make([]*regexp.Regexp, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		m[e.Topic] = patterns
	}
	return m
}()

// DetectTopic resolves the topic for a user message. A verbatim quick-reply
// chip wins outright; otherwise the keyword table is scanned in order and the
// first match wins. Detection is pure: same input, same topic.
func DetectTopic(text string) Topic {
	if topic, ok := quickReplies[text]; ok {
		return topic
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, e := range entries {
		for _, pattern := range keywordPatterns[e.Topic] {
			if pattern.MatchString(lower) {
				return e.Topic
			}
		}
	}
	return TopicUnknown
}

// ShouldEscalate reports whether the turn should be flagged for human
// hand-off: the support topic always escalates, as does any message
// containing an escalation word.
func ShouldEscalate(topic Topic, text string) bool {
	if topic == TopicSupport {
		return true
	}
	lower := strings.ToLower(text)
	for _, w := range escalationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Lookup returns the table entry for a topic.
func Lookup(topic Topic) (Entry, bool) {
	for _, e := range entries {
		if e.Topic == topic {
			return e, true
		}
	}
	return Entry{}, false
}

// Reply returns the canned reply for a known topic, or "" for unknown.
func Reply(topic Topic) string {
	if e, ok := Lookup(topic); ok {
		return e.Reply
	}
	return ""
}

// Suggestions returns the chip set for a topic. Open mode appends the first
// general suggestion to known-topic chips and leads with all general
// suggestions for unknown topics.
func Suggestions(topic Topic, open bool) []string {
	e, ok := Lookup(topic)
	if !ok {
		if open {
			out := make([]string, 0, len(GeneralSuggestions)+len(unknownTopicSuggestions))
			out = append(out, GeneralSuggestions...)
			return append(out, unknownTopicSuggestions...)
		}
		return append([]string(nil), unknownTopicSuggestions...)
	}
	if open {
		out := make([]string, 0, len(e.Suggestions)+1)
		out = append(out, e.Suggestions...)
		return append(out, GeneralSuggestions[0])
	}
	return append([]string(nil), e.Suggestions...)
}

// Greeting is the canned reply for an unknown topic.
func Greeting(provider string, open bool) string {
	if open {
		return "Hi — I’m " + provider + " Support. I can chat broadly and help with plans, " +
			"data/balance, billing, roaming, coverage or devices. How can I help?"
	}
	return "Hi — I’m " + provider + " Support. I can help with plans, data/balance, " +
		"billing, roaming, coverage or devices. What do you need help with?"
}

// Topics returns the known topics in table order.
func Topics() []Topic {
	out := make([]Topic, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Topic)
	}
	return out
}
