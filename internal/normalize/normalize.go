// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package normalize turns raw Azure DevOps field maps into the categorized,
// display-ready view the dashboard serves. Values are classified into a
// closed set of variants (see value.go), rendered deterministically, and
// bucketed into display categories (see categories.go). Normalization is
// idempotent: feeding an already-normalized value back through produces
// the same output.
package normalize

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/farolhq/farol/internal/classify"
	"github.com/farolhq/farol/internal/models"
)

// Unassigned is the sentinel shown for identity fields with no value.
const Unassigned = "Não atribuído"

// Display date formats after conversion to the display zone.
const (
	dateFormat     = "02/01/2006"
	dateTimeFormat = "02/01/2006 15:04"
)

// Well-known field keys feeding the top-level NormalizedRecord columns.
const (
	keyTitle       = "System.Title"
	keyState       = "System.State"
	keyAssignedTo  = "System.AssignedTo"
	keyBoardColumn = "System.BoardColumn"
	keyTargetDate  = "Microsoft.VSTS.Scheduling.TargetDate"
	keyClient      = "Custom.Cliente"
	keyPMO         = "Custom.PMO"
	keyFarol       = "Custom.Farol"
	keyResponsible = "Custom.Responsavel"
	keyPriority    = "Microsoft.VSTS.Common.Priority"
	keyActivated   = "Microsoft.VSTS.Common.ActivatedDate"
	keyResolved    = "Microsoft.VSTS.Common.ResolvedDate"
	keyClosed      = "Microsoft.VSTS.Common.ClosedDate"
)

// isoFormats are the datetime layouts Azure DevOps emits, most specific
// first.
var isoFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalizer renders raw fields for display in a fixed location (the
// dashboard's timezone).
type Normalizer struct {
	loc *time.Location
}

// New creates a Normalizer rendering dates in the given location. A nil
// location falls back to UTC.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Record builds the full normalized view of one raw work item.
func (n *Normalizer) Record(raw *models.RawRecord) models.NormalizedRecord {
	rec := models.NormalizedRecord{
		ID:          raw.ID,
		Title:       raw.StringField(keyTitle),
		State:       raw.StringField(keyState),
		Client:      strings.TrimSpace(raw.StringField(keyClient)),
		PMO:         strings.TrimSpace(raw.StringField(keyPMO)),
		BoardColumn: raw.StringField(keyBoardColumn),
		Farol:       classify.Farol(raw.StringField(keyFarol)),
		Fields:      n.Fields(raw.Fields),
	}

	rec.Responsible = strings.TrimSpace(raw.StringField(keyResponsible))
	if rec.Responsible == "" {
		rec.Responsible = identityDisplayName(raw.Fields[keyAssignedTo])
	}

	if t, ok := parseISODate(raw.StringField(keyTargetDate)); ok {
		rec.TargetDate = &t
	}

	rec.Priority = intField(raw.Fields[keyPriority])
	if t, ok := parseISODate(raw.StringField(keyActivated)); ok {
		rec.ActivatedDate = &t
	}
	resolved := raw.StringField(keyResolved)
	if resolved == "" {
		resolved = raw.StringField(keyClosed)
	}
	if t, ok := parseISODate(resolved); ok {
		rec.ResolvedDate = &t
	}

	return rec
}

// intField coerces a numeric raw field (float64 after JSON decoding,
// occasionally a string) to int. Anything else yields 0.
func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return 0
}

// Fields normalizes every displayable raw field into its category bucket.
// Fields within a bucket are ordered by key for stable output.
func (n *Normalizer) Fields(rawFields map[string]any) map[models.FieldCategory][]models.NormalizedField {
	out := make(map[models.FieldCategory][]models.NormalizedField)

	keys := make([]string, 0, len(rawFields))
	for key := range rawFields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if excluded(key) || isDuplicate(key) {
			continue
		}
		value := n.Value(key, rawFields[key])
		if value == "" {
			continue
		}
		cat := categoryFor(key)
		out[cat] = append(out[cat], models.NormalizedField{
			Key:   key,
			Label: labelFor(key),
			Value: value,
		})
	}

	return out
}

// Value renders one raw field value according to its variant.
func (n *Normalizer) Value(key string, raw any) string {
	switch classifyField(key, raw) {
	case KindChecklist:
		return normalizeChecklist(stringify(raw))
	case KindEnum:
		return stripEnumPrefix(stringify(raw))
	case KindIdentity:
		return identityDisplayName(raw)
	case KindDate:
		return n.formatDate(stringify(raw))
	case KindRichText:
		return StripHTML(stringify(raw))
	default:
		return strings.TrimSpace(stringify(raw))
	}
}

// normalizeChecklist strips the numeric prefix and canonicalizes the
// boolean-like answer. Already-canonical values pass through unchanged.
func normalizeChecklist(s string) string {
	label := stripEnumPrefix(s)
	if canonical, ok := checklistAnswers[strings.ToLower(label)]; ok {
		return canonical
	}
	return label
}

// stripEnumPrefix removes the "<n> - " encoding, keeping the label. A
// value with no prefix is returned trimmed, which makes the operation
// idempotent.
func stripEnumPrefix(s string) string {
	return strings.TrimSpace(encodedValue.ReplaceAllString(strings.TrimSpace(s), ""))
}

// identityDisplayName extracts the display name from an identity object.
// String values (already-normalized names) pass through; anything absent
// or empty yields the unassigned sentinel.
func identityDisplayName(raw any) string {
	switch v := raw.(type) {
	case map[string]any:
		if name, ok := v["displayName"].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
		if unique, ok := v["uniqueName"].(string); ok && strings.TrimSpace(unique) != "" {
			return strings.TrimSpace(unique)
		}
		return Unassigned
	case string:
		if strings.TrimSpace(v) == "" {
			return Unassigned
		}
		return strings.TrimSpace(v)
	case nil:
		return Unassigned
	default:
		return Unassigned
	}
}

// formatDate renders an ISO date in the display zone. Values that do not
// parse as ISO (including already-formatted display dates) are returned
// unchanged, which keeps normalization idempotent.
func (n *Normalizer) formatDate(s string) string {
	t, ok := parseISODate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	// Date-only values arrive as midnight UTC; shifting those into the
	// display zone would move them to the previous day.
	utc := t.UTC()
	if utc.Hour() == 0 && utc.Minute() == 0 && utc.Second() == 0 {
		return utc.Format(dateFormat)
	}
	return t.In(n.loc).Format(dateTimeFormat)
}

// parseISODate parses the datetime layouts Azure DevOps emits. Layouts
// without a zone are taken as UTC.
func parseISODate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StripHTML removes markup from rich-text fields while preserving
// paragraph structure: block-level closings become line breaks, runs of
// spaces collapse, and entities are decoded. Plain text passes through
// unchanged.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	tagStart := 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case !inTag && r == '<' && i+1 < len(runes) && isTagStart(runes[i+1]):
			inTag = true
			tagStart = i
		case inTag && r == '>':
			inTag = false
			if isBlockTag(string(runes[tagStart+1 : i])) {
				b.WriteByte('\n')
			}
		case !inTag:
			b.WriteRune(r)
		}
	}
	// Unterminated tag: keep the raw text.
	if inTag {
		b.WriteString(string(runes[tagStart:]))
	}

	return collapseWhitespace(html.UnescapeString(b.String()))
}

func isTagStart(r rune) bool {
	return r == '/' || r == '!' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isBlockTag reports whether a tag ends a block-level element or is an
// explicit line break. Opening block tags emit nothing so a paragraph
// produces exactly one break.
func isBlockTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimSuffix(tag, "/")
	if i := strings.IndexAny(tag, " \t"); i >= 0 {
		tag = tag[:i]
	}
	if tag == "br" {
		return true
	}
	switch strings.TrimPrefix(tag, "/") {
	case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "ul", "ol":
		return strings.HasPrefix(tag, "/")
	}
	return false
}

// collapseWhitespace collapses runs of spaces/tabs, trims each line, and
// limits consecutive blank lines to one.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	// Drop a trailing blank line.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// stringify renders any scalar raw value as a string.
func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
