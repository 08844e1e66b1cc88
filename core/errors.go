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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPoint indicates a Point failed validation.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrInvalidTask indicates a CrawlTask failed validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyVector indicates a point has no embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrEmptyCollection indicates a collection name is missing.
	ErrEmptyCollection = errors.New("collection name cannot be empty")

	// ErrInvalidURL indicates a seed URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidPhase indicates an unknown Phase value.
	ErrInvalidPhase = errors.New("invalid phase")
)
