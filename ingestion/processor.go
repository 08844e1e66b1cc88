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


package ingestion

import (
	"log/slog"
	"strings"

	"github.com/poiesic/sitebot/chunk"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/crawl"
	"github.com/poiesic/sitebot/tasks"
)

// chunkPages extracts the text of every page in visit order and splits it
// into chunks. Chunk indexes run across all pages.
func chunkPages(pages []core.Page, extractor crawl.Extractor, cfg chunk.Config) []core.Chunk {
	var chunks []core.Chunk
	for _, page := range pages {
		chunks = appendChunks(chunks, extractor.Extract(page.URL, page.HTML), page.URL, cfg)
	}
	return chunks
}

// appendChunks splits text and appends the non-blank pieces to chunks.
func appendChunks(chunks []core.Chunk, text, source string, cfg chunk.Config) []core.Chunk {
	if strings.TrimSpace(text) == "" {
		return chunks
	}
	for _, piece := range cfg.Chunk(text) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, core.Chunk{
			Index:  len(chunks),
			Text:   piece,
			Source: source,
		})
	}
	return chunks
}

func chunkTexts(chunks []core.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

// progressMonitor publishes the running page count of a crawl to the registry.
type progressMonitor struct {
	registry tasks.Registry
	taskID   string
	logger   *slog.Logger
}

var _ crawl.Monitor = (*progressMonitor)(nil)

func (m *progressMonitor) Start(seed string) {
	m.logger.Debug("crawl started", "seed", seed)
}

func (m *progressMonitor) PageVisited(url string, visited int) {
	err := m.registry.Update(m.taskID, func(t *core.CrawlTask) {
		t.PagesScraped = visited
	})
	if err != nil {
		m.logger.Warn("failed to record crawl progress", "url", url, "err", err)
	}
}

func (m *progressMonitor) PageSkipped(url string) {
	m.logger.Debug("page skipped", "url", url)
}

func (m *progressMonitor) Finish(result *crawl.Result) {
	m.logger.Debug("crawl finished", "pages", len(result.Pages))
}
