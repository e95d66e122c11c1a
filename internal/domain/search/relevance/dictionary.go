package relevance

import "strings"

// Dictionary holds the static keyword tables consulted by the scorer.
type Dictionary struct {
	ProductKeywords  []string
	BrandKeywords    []string
	CategoryKeywords []string
	StopWords        []string
	DomainTerms      []string

	stopWords map[string]struct{}
}

// DefaultDictionary returns the electronics storefront vocabulary.
func DefaultDictionary() Dictionary {
	return Dictionary{
		ProductKeywords: []string{
			"arduino", "raspberry pi", "esp32", "esp8266", "microcontroller", "sensor",
			"module", "board", "shield", "motor", "servo", "relay", "display", "lcd",
			"oled", "led", "resistor", "capacitor", "transistor", "breadboard", "jumper",
			"battery", "charger", "antenna", "transceiver", "camera", "kit",
		},
		BrandKeywords: []string{
			"arduino", "raspberry", "adafruit", "sparkfun", "espressif", "seeed",
			"dfrobot", "waveshare", "texas instruments", "stmicroelectronics",
		},
		CategoryKeywords: []string{
			"development", "robotics", "iot", "wireless", "power", "cable", "tools",
			"components", "prototyping", "audio", "lighting",
		},
		StopWords: []string{
			"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has", "he",
			"in", "is", "it", "its", "of", "on", "or", "that", "the", "to", "was", "were",
			"will", "with", "this", "these", "those", "i", "you", "we", "they", "my",
			"me", "what", "which", "who", "whom", "where", "when", "why", "how", "all",
			"any", "both", "each", "few", "more", "most", "other", "some", "such", "no",
			"nor", "not", "only", "own", "same", "so", "than", "too", "very", "can",
			"just", "should", "now", "image", "photo", "picture", "jpg", "jpeg", "png",
		},
		DomainTerms: []string{
			"rf transceiver module", "development board", "microcontroller board",
			"motor driver", "stepper motor", "servo motor", "ultrasonic sensor",
			"temperature sensor", "humidity sensor", "lcd display", "oled display",
			"wifi module", "bluetooth module", "gps module", "relay module",
			"power supply", "jumper wires", "logic level converter", "voltage regulator",
			"single board computer",
		},
	}
}

// compile lowercases every table and builds the stop word set.
func (d Dictionary) compile() Dictionary {
	out := Dictionary{
		ProductKeywords:  lowerAll(d.ProductKeywords),
		BrandKeywords:    lowerAll(d.BrandKeywords),
		CategoryKeywords: lowerAll(d.CategoryKeywords),
		StopWords:        lowerAll(d.StopWords),
		DomainTerms:      make([]string, 0, len(d.DomainTerms)),
		stopWords:        make(map[string]struct{}, len(d.StopWords)),
	}
	for _, w := range out.StopWords {
		out.stopWords[w] = struct{}{}
	}
	// Domain terms are matched against normalized candidates.
	seen := make(map[string]struct{}, len(d.DomainTerms))
	for _, t := range d.DomainTerms {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out.DomainTerms = append(out.DomainTerms, n)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
