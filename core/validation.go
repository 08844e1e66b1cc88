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

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidatePoint validates a Point according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//   - Vector must not be empty
//   - Collection must not be empty
//
// NOT validated:
//   - ID (0 is a legal hash value)
//   - Source (uploads may have no filename)
func ValidatePoint(point *Point) error {
	if point == nil {
		return fmt.Errorf("%w: point is nil", ErrInvalidPoint)
	}

	if strings.TrimSpace(point.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyContent)
	}

	if len(point.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyVector)
	}

	if err := ValidateCollection(point.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}

	return nil
}

// ValidateCollection checks that a collection name is usable as a key prefix.
func ValidateCollection(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCollection
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: contains NUL", ErrEmptyCollection)
	}
	return nil
}

// ValidateSeedURL checks that raw is an absolute http or https URL with a host.
func ValidateSeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// ValidatePhase validates that a Phase has a known value.
func ValidatePhase(p Phase) error {
	switch p {
	case PhaseCrawling, PhaseProcessing, PhaseGeneratingEmbeddings, PhaseStoring,
		PhaseCompleted, PhaseError, PhaseCancelled:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidPhase, string(p))
}

// ValidateTask validates a new CrawlTask.
func ValidateTask(task *CrawlTask) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidTask)
	}
	if task.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	if err := ValidateCollection(task.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	if err := ValidatePhase(task.Phase); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	return nil
}
