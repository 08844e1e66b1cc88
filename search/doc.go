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


// Package search finds the stored chunks most relevant to a query.
//
// The Searcher combines two signals:
//   - Semantic similarity between the query embedding and stored vectors
//   - Keyword matches between the query's significant words and chunk text
//
// Twice the requested number of candidates are fetched by similarity, each
// candidate gains a fixed boost per matching keyword, and the best are returned.
package search
