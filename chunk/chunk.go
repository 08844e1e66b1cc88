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


package chunk

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config holds chunking parameters.
type Config struct {
	// Size is the target chunk length in characters.
	Size int `yaml:"size"`

	// Overlap is the maximum length of trailing sentences repeated at the
	// start of the following chunk.
	Overlap int `yaml:"overlap"`
}

// CrawlConfig returns the parameters used for crawled pages.
func CrawlConfig() Config {
	return Config{Size: 64, Overlap: 10}
}

// UploadConfig returns the parameters used for uploaded documents.
func UploadConfig() Config {
	return Config{Size: 1000, Overlap: 200}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSize, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.Overlap, c.Size)
	}
	return nil
}

// Chunk splits text using the receiver's parameters.
func (c Config) Chunk(text string) []string {
	return Chunk(text, c.Size, c.Overlap)
}

// Split breaks text into trimmed, non-blank sentences. A sentence ends at
// '.', '!' or '?' when the next character is whitespace.
func Split(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(text) {
			break
		}
		nr, _ := utf8.DecodeRuneInString(text[next:])
		if !unicode.IsSpace(nr) {
			continue
		}
		sentences = appendSentence(sentences, text[start:next])
		start = next
	}
	return appendSentence(sentences, text[start:])
}

func appendSentence(sentences []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return sentences
	}
	return append(sentences, s)
}

// Chunk groups the sentences of text into chunks of roughly size characters.
//
// When the next sentence would push a non-empty buffer past size, the buffer
// is emitted and the next one is seeded with its trailing sentences whose
// combined length fits within overlap. A size below 1 is treated as 1 and a
// negative overlap as 0.
func Chunk(text string, size, overlap int) []string {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}

	var (
		chunks []string
		buf    []string
		bufLen int
	)

	for _, sentence := range Split(text) {
		n := utf8.RuneCountInString(sentence)

		if bufLen+n > size && len(buf) > 0 {
			chunks = appendChunk(chunks, buf)
			buf, bufLen = overlapTail(buf, overlap)
		}

		buf = append(buf, sentence)
		bufLen += n
	}

	if len(buf) > 0 {
		chunks = appendChunk(chunks, buf)
	}
	return chunks
}

func appendChunk(chunks []string, buf []string) []string {
	joined := strings.Join(buf, " ")
	if strings.TrimSpace(joined) == "" {
		return chunks
	}
	return append(chunks, joined)
}

// overlapTail returns the longest suffix of buf whose total length is within limit.
func overlapTail(buf []string, limit int) ([]string, int) {
	total := 0
	start := len(buf)
	for i := len(buf) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(buf[i])
		if total+n > limit {
			break
		}
		total += n
		start = i
	}
	tail := make([]string, len(buf)-start)
	copy(tail, buf[start:])
	return tail, total
}
