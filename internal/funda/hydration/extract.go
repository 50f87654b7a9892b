// Package hydration locates a listing's rich-data payload inside the
// client-side hydration state embedded in a detail page. The payload's
// nesting depth changes between site releases, so a breadth-first search
// over the parsed JSON replaces any fixed path.
package hydration

import (
	"bytes"
	"encoding/json"
	"strings"

	"valora_backend/platform/logger"

	"golang.org/x/net/html"
)

// maxVisitedNodes bounds the BFS so a pathological payload cannot spin the
// extractor; real payloads resolve within a few thousand nodes.
const maxVisitedNodes = 10000

// signatureKeys identify the rich-data object. Only an object carrying all
// three simultaneously qualifies.
var signatureKeys = [...]string{"features", "media", "description"}

// challengeMarkers are lowercase title fragments of the site's bot
// interstitial.
var challengeMarkers = []string{"bijna op de pagina", "challenge", "even geduld"}

// Extractor finds the hydration payload inside detail-page HTML.
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract scans every inlined JSON script block and returns the raw JSON
// of the first object holding all signature keys. The second return is
// false when no block qualifies; that is an expected outcome, not an error.
func (e *Extractor) Extract(pageHTML string) (json.RawMessage, bool) {
	for _, block := range scriptBlocks(pageHTML) {
		payload, ok := FindPayload([]byte(block))
		if ok {
			return payload, true
		}
	}
	return nil, false
}

// FindPayload runs a breadth-first search over one JSON document and
// returns the first object with all signature keys. Objects and arrays are
// both traversed; the visit counter is the safety bound.
func FindPayload(doc []byte) (json.RawMessage, bool) {
	root := json.RawMessage(bytes.TrimSpace(doc))
	if len(root) == 0 {
		return nil, false
	}

	queue := []json.RawMessage{root}
	visited := 0

	for len(queue) > 0 && visited < maxVisitedNodes {
		node := queue[0]
		queue = queue[1:]
		visited++

		trimmed := bytes.TrimSpace(node)
		if len(trimmed) == 0 {
			continue
		}

		switch trimmed[0] {
		case '{':
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(trimmed, &obj); err != nil {
				continue
			}
			if hasSignature(obj) {
				return trimmed, true
			}
			for _, child := range obj {
				queue = append(queue, child)
			}
		case '[':
			var arr []json.RawMessage
			if err := json.Unmarshal(trimmed, &arr); err != nil {
				continue
			}
			queue = append(queue, arr...)
		}
	}

	return nil, false
}

func hasSignature(obj map[string]json.RawMessage) bool {
	for _, key := range signatureKeys {
		value, ok := obj[key]
		if !ok {
			return false
		}
		if string(bytes.TrimSpace(value)) == "null" {
			return false
		}
	}
	return true
}

// IsChallengeTitle reports whether the page title marks a bot challenge.
func IsChallengeTitle(pageHTML string) bool {
	title := strings.ToLower(pageTitle(pageHTML))
	for _, marker := range challengeMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// scriptBlocks returns the text of every <script> element that looks like
// an inlined JSON document.
func scriptBlocks(pageHTML string) []string {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			var sb strings.Builder
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					sb.WriteString(child.Data)
				}
			}
			text := strings.TrimSpace(sb.String())
			if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
				blocks = append(blocks, text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return blocks
}

func pageTitle(pageHTML string) string {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = n.FirstChild.Data
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return title
}
