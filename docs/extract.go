// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package docs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/ledongthuc/pdf"
	"github.com/poiesic/sitebot/chunk"
	"github.com/poiesic/sitebot/crawl"
)

// Format identifies how an uploaded file is read.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatSVG  Format = "svg"
	FormatPDF  Format = "pdf"
)

var formats = map[string]Format{
	".txt":  FormatText,
	".md":   FormatText,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".svg":  FormatSVG,
	".pdf":  FormatPDF,
}

// svgTextQuery matches text elements regardless of namespace prefix.
const svgTextQuery = "//*[local-name()='text']"

// Extensions lists accepted file extensions in sorted order.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// FormatOf returns the format for filename, judged by its extension.
func FormatOf(filename string) (Format, bool) {
	f, ok := formats[strings.ToLower(filepath.Ext(filename))]
	return f, ok
}

// ExtractText returns the preprocessed text content of an uploaded file.
func ExtractText(filename string, content []byte) (string, error) {
	format, ok := FormatOf(filename)
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedFormat, filepath.Ext(filename), strings.Join(Extensions(), ", "))
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return "", ErrEmptyFile
	}
	if format == FormatPDF {
		return pdfText(content)
	}
	if !utf8.Valid(content) {
		return "", ErrInvalidEncoding
	}

	var raw string
	switch format {
	case FormatHTML:
		raw = crawl.ExtractText(string(content))
	case FormatSVG:
		var err error
		if raw, err = svgText(content); err != nil {
			return "", err
		}
	default:
		raw = string(content)
	}

	text := chunk.Preprocess(raw)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func svgText(content []byte) (string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	nodes, err := xmlquery.QueryAll(doc, svgTextQuery)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := strings.TrimSpace(n.InnerText()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// pdfText preprocesses each page on its own and joins the non-empty pages
// with newlines. Pages whose text cannot be decoded are skipped.
func pdfText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if s := chunk.Preprocess(raw); s != "" {
			pages = append(pages, s)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n"), nil
}
