package compress

import (
	"regexp"
	"strings"
)

// class is one family of domain-salient substrings.
type class struct {
	name    string
	pattern *regexp.Regexp
}

// Classes are applied in this order and contribute facts in this order.
// Pickup codes are matched case-sensitively; a lone lower-case "h" or "ss"
// in prose is not a pickup configuration.
var classes = []class{
	{"year", regexp.MustCompile(`\b\d{4}\b`)},
	{"price", regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)},
	{"wood", regexp.MustCompile(`(?i)\b(?:mahogany|maple|rosewood|ebony|alder|ash|basswood)\b`)},
	{"pickups", regexp.MustCompile(`\b(?:HH|SSS|HSS|HS|SS|H)\b`)},
	{"measurement", regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:inches|inch|in\b|")`)},
	{"brand", regexp.MustCompile(`(?i)\b(?:Fender|Gibson|PRS|Ibanez|ESP|Jackson|Schecter)\b`)},
	{"model", regexp.MustCompile(`(?i)\b(?:Mustang|Stratocaster|Telecaster|Les Paul|SG|Explorer)\b`)},
}

// extract returns up to perClass distinct matches per class, in class
// order, deduplicated case-insensitively across the whole result.
func extract(text string, perClass int) []string {
	seen := make(map[string]bool)
	var facts []string

	for _, c := range classes {
		taken := 0
		for _, match := range c.pattern.FindAllString(text, -1) {
			if taken == perClass {
				break
			}
			key := strings.ToLower(match)
			if seen[key] {
				continue
			}
			seen[key] = true
			facts = append(facts, match)
			taken++
		}
	}
	return facts
}
