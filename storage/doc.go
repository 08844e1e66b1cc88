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


// Package storage provides the vector store abstraction for sitebot.
//
// A vector store holds Points (chunk text plus embedding) partitioned into
// named collections. Each collection has a fixed vector dimension set when it
// is first created.
//
// # Constructor Return Type Pattern
//
// Backend packages return concrete types from their constructors; consumers
// depend only on the VectorStore interface defined here:
//
//	store, err := badger.NewVectorStore(backend)  // *badger.VectorStore
//	var vs storage.VectorStore = store
//
// # Partial failure
//
// Upsert writes in batches. A batch that fails is logged and skipped; the
// call fails only when nothing at all was stored (ErrNothingStored). Callers
// learn how many points were written from the returned count.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context. Long scans and batched writes check
// for cancellation between items or batches.
package storage
