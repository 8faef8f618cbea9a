package engine

import (
	"regexp"
	"strings"

	"github.com/millstone-labs/millflow/data"
	"github.com/millstone-labs/millflow/workflow"
)

// metadata keys inspected by switch conditions.
const (
	metaPageCount          = "page_count"
	metaDurationSeconds    = "duration_seconds"
	metaLanguage           = "language"
	metaLanguageConfidence = "language_confidence"
	metaCreatedAt          = "created_at"
	metaModifiedAt         = "modified_at"
)

// defaultContentType stands in for blobs that carry no MIME type.
const defaultContentType = "application/octet-stream"

// CompiledSwitch routes each data unit to one of two ports. Evaluation is
// total: a unit the condition cannot judge goes to the else port, never to
// an error.
type CompiledSwitch struct {
	condition workflow.Condition
	matchPort string
	elsePort  string

	// pattern is non-nil only for regex file name conditions that compiled.
	// An invalid pattern matches nothing.
	pattern *regexp.Regexp
}

// NewCompiledSwitch prepares a switch kind for evaluation.
func NewCompiledSwitch(k workflow.Switch) *CompiledSwitch {
	s := &CompiledSwitch{
		condition: k.Condition,
		matchPort: k.MatchPort,
		elsePort:  k.ElsePort,
	}
	if fn, ok := k.Condition.(workflow.FileName); ok && fn.Match == workflow.MatchRegex {
		if re, err := regexp.Compile(fn.Pattern); err == nil {
			s.pattern = re
		}
	}
	return s
}

// MatchPort returns the port taken when the condition holds.
func (s *CompiledSwitch) MatchPort() string { return s.matchPort }

// ElsePort returns the port taken when the condition does not hold.
func (s *CompiledSwitch) ElsePort() string { return s.elsePort }

// Evaluate returns the port v should be routed to.
func (s *CompiledSwitch) Evaluate(v data.Value) string {
	if s.matches(v) {
		return s.matchPort
	}
	return s.elsePort
}

func (s *CompiledSwitch) matches(v data.Value) bool {
	switch c := s.condition.(type) {
	case workflow.ContentType:
		blob, ok := v.(*data.Blob)
		if !ok {
			return false
		}
		ct := blob.ContentType
		if ct == "" {
			ct = defaultContentType
		}
		return categoryMatches(c.Category, ct)

	case workflow.FileExtension:
		blob, ok := v.(*data.Blob)
		if !ok {
			return false
		}
		ext := blob.Extension()
		for _, want := range c.Extensions {
			if strings.EqualFold(ext, want) {
				return true
			}
		}
		return false

	case workflow.FileSize:
		blob, ok := v.(*data.Blob)
		if !ok {
			return false
		}
		return inRange(int64(len(blob.Data)), c.MinBytes, c.MaxBytes)

	case workflow.PageCount:
		n, ok := data.MetaInt(v, metaPageCount)
		return ok && inRange(n, c.MinPages, c.MaxPages)

	case workflow.Duration:
		n, ok := data.MetaInt(v, metaDurationSeconds)
		return ok && inRange(n, c.MinSeconds, c.MaxSeconds)

	case workflow.Language:
		code, ok := data.MetaString(v, metaLanguage)
		if !ok || !strings.EqualFold(code, c.Code) {
			return false
		}
		if c.MinConfidence != nil {
			// The confidence gate only applies when the value is present.
			if conf, ok := data.MetaFloat(v, metaLanguageConfidence); ok && conf < *c.MinConfidence {
				return false
			}
		}
		return true

	case workflow.FileDate:
		key := metaCreatedAt
		if c.Field == workflow.DateModified {
			key = metaModifiedAt
		}
		ts, ok := data.MetaTime(v, key)
		if !ok {
			return false
		}
		if c.After != nil && ts.Before(*c.After) {
			return false
		}
		if c.Before != nil && ts.After(*c.Before) {
			return false
		}
		return true

	case workflow.FileName:
		blob, ok := v.(*data.Blob)
		if !ok {
			return false
		}
		name := blob.Name()
		switch c.Match {
		case workflow.MatchRegex:
			return s.pattern != nil && s.pattern.MatchString(name)
		case workflow.MatchExact:
			return name == c.Pattern
		case workflow.MatchContains:
			return strings.Contains(strings.ToLower(name), strings.ToLower(c.Pattern))
		default:
			return globMatch(c.Pattern, name)
		}
	}
	return false
}

func inRange(n int64, lo, hi *int64) bool {
	if lo != nil && n < *lo {
		return false
	}
	if hi != nil && n > *hi {
		return false
	}
	return true
}

func categoryMatches(cat workflow.ContentCategory, ct string) bool {
	switch cat {
	case workflow.CategoryImage:
		return strings.HasPrefix(ct, "image/")
	case workflow.CategoryDocument:
		return ct == "application/pdf" ||
			strings.HasPrefix(ct, "application/vnd.") ||
			ct == "application/msword"
	case workflow.CategoryText:
		return strings.HasPrefix(ct, "text/") || ct == "application/json"
	case workflow.CategoryAudio:
		return strings.HasPrefix(ct, "audio/")
	case workflow.CategoryVideo:
		return strings.HasPrefix(ct, "video/")
	case workflow.CategorySpreadsheet:
		return ct == "application/vnd.ms-excel" ||
			strings.Contains(ct, "spreadsheet") ||
			ct == "text/csv"
	case workflow.CategoryPresentation:
		return ct == "application/vnd.ms-powerpoint" ||
			strings.Contains(ct, "presentation")
	case workflow.CategoryArchive:
		switch ct {
		case "application/zip", "application/x-tar", "application/gzip",
			"application/x-rar-compressed", "application/x-7z-compressed":
			return true
		}
		return false
	case workflow.CategoryCode:
		return strings.HasPrefix(ct, "text/x-") ||
			ct == "application/javascript" ||
			ct == "application/typescript" ||
			ct == "application/x-python"
	case workflow.CategoryOther:
		return true
	}
	return false
}

// globMatch matches name against pattern case-insensitively. `*` matches any
// run of characters, `?` exactly one.
func globMatch(pattern, name string) bool {
	return globFold(strings.ToLower(pattern), strings.ToLower(name))
}

func globFold(p, n string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(n); i++ {
				if globFold(p[1:], n[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(n) == 0 {
				return false
			}
		default:
			if len(n) == 0 || p[0] != n[0] {
				return false
			}
		}
		p, n = p[1:], n[1:]
	}
	return len(n) == 0
}
