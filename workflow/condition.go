package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Condition is the closed set of switch predicates. Evaluation lives in the
// engine package; here conditions are pure configuration.
type Condition interface {
	isCondition()
	conditionType() string
}

// ContentCategory buckets MIME types into coarse routing classes.
type ContentCategory string

const (
	CategoryImage        ContentCategory = "image"
	CategoryDocument     ContentCategory = "document"
	CategoryText         ContentCategory = "text"
	CategoryAudio        ContentCategory = "audio"
	CategoryVideo        ContentCategory = "video"
	CategorySpreadsheet  ContentCategory = "spreadsheet"
	CategoryPresentation ContentCategory = "presentation"
	CategoryArchive      ContentCategory = "archive"
	CategoryCode         ContentCategory = "code"
	CategoryOther        ContentCategory = "other"
)

// DateField selects which file timestamp a FileDate condition inspects.
type DateField string

const (
	DateCreated  DateField = "created"
	DateModified DateField = "modified"
)

// PatternMatch selects how a FileName pattern is interpreted.
type PatternMatch string

const (
	MatchGlob     PatternMatch = "glob"
	MatchRegex    PatternMatch = "regex"
	MatchExact    PatternMatch = "exact"
	MatchContains PatternMatch = "contains"
)

// ContentType matches blobs whose MIME type falls into a category.
// CategoryOther matches every blob.
type ContentType struct {
	Category ContentCategory `json:"category" validate:"required"`
}

// FileExtension matches blobs whose path extension is in the allow-list.
// Comparison is case-insensitive; extensions are listed without the dot.
type FileExtension struct {
	Extensions []string `json:"extensions" validate:"required,min=1"`
}

// FileSize matches blobs whose payload size falls in an inclusive range.
// A nil bound imposes no constraint.
type FileSize struct {
	MinBytes *int64 `json:"min_bytes,omitempty"`
	MaxBytes *int64 `json:"max_bytes,omitempty"`
}

// PageCount matches on "page_count" metadata, inclusive range.
type PageCount struct {
	MinPages *int64 `json:"min_pages,omitempty"`
	MaxPages *int64 `json:"max_pages,omitempty"`
}

// Duration matches on "duration_seconds" metadata, inclusive range.
type Duration struct {
	MinSeconds *int64 `json:"min_seconds,omitempty"`
	MaxSeconds *int64 `json:"max_seconds,omitempty"`
}

// Language matches on "language" metadata, case-insensitively. When a
// "language_confidence" value is present it must reach MinConfidence; when
// absent the code alone decides.
type Language struct {
	Code          string   `json:"code" validate:"required"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

// FileDate matches a timestamp metadata field against inclusive bounds.
type FileDate struct {
	Field  DateField  `json:"field,omitempty"`
	After  *time.Time `json:"after,omitempty"`
	Before *time.Time `json:"before,omitempty"`
}

// FileName matches the final path segment against a pattern.
type FileName struct {
	Pattern string       `json:"pattern" validate:"required"`
	Match   PatternMatch `json:"match,omitempty"`
}

func (ContentType) isCondition()   {}
func (FileExtension) isCondition() {}
func (FileSize) isCondition()      {}
func (PageCount) isCondition()     {}
func (Duration) isCondition()      {}
func (Language) isCondition()      {}
func (FileDate) isCondition()      {}
func (FileName) isCondition()      {}

func (ContentType) conditionType() string   { return "content_type" }
func (FileExtension) conditionType() string { return "file_extension" }
func (FileSize) conditionType() string      { return "file_size" }
func (PageCount) conditionType() string     { return "page_count" }
func (Duration) conditionType() string      { return "duration" }
func (Language) conditionType() string      { return "language" }
func (FileDate) conditionType() string      { return "file_date" }
func (FileName) conditionType() string      { return "file_name" }

func marshalCondition(c Condition) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("condition missing")
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return tagObjectField("type", c.conditionType(), body)
}

func unmarshalCondition(raw json.RawMessage) (Condition, error) {
	kind, body, err := untagObjectField("type", raw)
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}

	switch kind {
	case "content_type":
		var c ContentType
		err = json.Unmarshal(body, &c)
		return c, err
	case "file_extension":
		var c FileExtension
		err = json.Unmarshal(body, &c)
		return c, err
	case "file_size":
		var c FileSize
		err = json.Unmarshal(body, &c)
		return c, err
	case "page_count":
		var c PageCount
		err = json.Unmarshal(body, &c)
		return c, err
	case "duration":
		var c Duration
		err = json.Unmarshal(body, &c)
		return c, err
	case "language":
		var c Language
		err = json.Unmarshal(body, &c)
		return c, err
	case "file_date":
		var c FileDate
		err = json.Unmarshal(body, &c)
		return c, err
	case "file_name":
		var c FileName
		err = json.Unmarshal(body, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown condition type %q", kind)
}
