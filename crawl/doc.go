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


// Package crawl discovers and downloads the pages of a single website.
//
// The package is built from four small pieces that are usable on their own:
//
//   - ShouldSkip and IsEligible decide whether a discovered link is worth
//     following (same host, not a binary asset, not a mailto: or fragment link).
//   - Fetcher downloads one page. It never returns an error: anything that
//     goes wrong (network failure, timeout, non-2xx status, non-HTML content)
//     yields an empty body, which callers treat as "skip this page".
//   - ExtractText and ExtractLinks pull readable text and outbound links from
//     HTML using goquery.
//   - Crawler runs a breadth-first traversal from a seed URL and returns the
//     visited pages in visit order.
//
// # Crawl semantics
//
// A URL is fetched at most once. URLs that fetched empty are not recorded as
// pages and are never queued again. The traversal ends when the frontier is
// empty, when the optional page cap is reached, or when the context is
// cancelled. Cancellation returns the pages gathered so far alongside the
// context error.
//
// # Observability
//
// A Monitor receives a callback per visited or skipped page. The ingestion
// pipeline uses it to publish live page counts; the metrics package uses it
// to count fetches.
package crawl
