package gtfsmerge

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Normalize applies the configured output touch-ups to the merged
// graph: feed_info publisher override, route recoloring, and route
// long-name title-casing. Runs after a successful audit, before
// serialization.
func Normalize(graph *OutputGraph, cfg *Config) error {
	if cfg.Publisher != nil {
		applyPublisher(graph, cfg.Publisher)
	}
	if len(cfg.RouteColors) > 0 {
		if err := applyRouteColors(graph, cfg.RouteColors); err != nil {
			return err
		}
	}
	if len(cfg.UpperCaseWords) > 0 {
		applyLongNameCase(graph, cfg.UpperCaseWords)
	}
	return nil
}

func applyPublisher(graph *OutputGraph, pub *PublisherConfig) {
	if graph.Records.Len(KindFeedInfo) == 0 {
		// No source feed published one; start from scratch.
		_ = graph.Records.Put(KindFeedInfo, &Record{
			Key:    "0",
			Fields: map[string]string{},
		})
	}
	_ = graph.Records.Each(KindFeedInfo, func(rec *Record) error {
		if pub.Name != "" {
			rec.Fields["feed_publisher_name"] = pub.Name
		}
		if pub.URL != "" {
			rec.Fields["feed_publisher_url"] = pub.URL
		}
		if pub.Version != "" {
			rec.Fields["feed_version"] = pub.Version
		}
		return nil
	})
}

// applyRouteColors recolors matching routes rule by rule, so later,
// more specific rules override earlier generic ones.
func applyRouteColors(graph *OutputGraph, rules []RouteColorRule) error {
	for _, rule := range rules {
		textColor, err := textColorFor(rule.Color)
		if err != nil {
			return fmt.Errorf("route color rule %q: %w", rule.ShortName, err)
		}
		color := strings.TrimPrefix(rule.Color, "#")
		recolored := 0
		_ = graph.Records.Each(KindRoutes, func(rec *Record) error {
			if rule.Type != "" && rec.Get("route_type") != rule.Type {
				return nil
			}
			if !matchPattern(rule.ShortName, rec.Get("route_short_name")) {
				return nil
			}
			rec.Fields["route_color"] = color
			rec.Fields["route_text_color"] = textColor
			recolored++
			return nil
		})
		if recolored > 0 {
			slog.Info(fmt.Sprintf("Recolored %d route(s) matching %q", recolored, rule.ShortName))
		}
	}
	return nil
}

func applyLongNameCase(graph *OutputGraph, upperWords []string) {
	patterns := make([]*regexp.Regexp, len(upperWords))
	for i, word := range upperWords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	_ = graph.Records.Each(KindRoutes, func(rec *Record) error {
		name := rec.Get("route_long_name")
		if name == "" {
			return nil
		}
		name = titleCase(name)
		for i, p := range patterns {
			name = p.ReplaceAllString(name, upperWords[i])
		}
		rec.Fields["route_long_name"] = name
		return nil
	})
}

// matchPattern matches s against a pattern where "*" stands for any
// run of characters.
func matchPattern(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}

// textColorFor picks a legible text color for the given background:
// black on light colors, white on dark ones.
func textColorFor(background string) (string, error) {
	hex := strings.TrimPrefix(background, "#")
	if len(hex) != 6 {
		return "", fmt.Errorf("bad color %q", background)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", fmt.Errorf("bad color %q", background)
	}
	r := float64(rgb >> 16 & 0xff)
	g := float64(rgb >> 8 & 0xff)
	b := float64(rgb & 0xff)
	luminance := 0.299*r + 0.587*g + 0.114*b
	if luminance > 127.5 {
		return "000000", nil
	}
	return "ffffff", nil
}

// titleCase capitalizes the first letter of every word, where a word
// starts after any non-letter, and lowercases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
