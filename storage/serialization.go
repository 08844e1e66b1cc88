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


package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/sitebot/core"
	"go.mongodb.org/mongo-driver/bson"
)

// pointDoc is the stored form of a Point.
// BSON has no unsigned 64-bit type, so the ID is stored bit-for-bit as int64.
type pointDoc struct {
	ID         int64     `bson:"id"`
	Collection string    `bson:"collection"`
	Text       string    `bson:"text"`
	Source     string    `bson:"source,omitempty"`
	ChunkIndex int       `bson:"chunk_index"`
	TextLength int       `bson:"text_length"`
	Vector     []float32 `bson:"vector"`
	CreatedAt  time.Time `bson:"created_at"`
}

type collectionDoc struct {
	Name      string    `bson:"name"`
	Dimension int       `bson:"dimension"`
	CreatedAt time.Time `bson:"created_at"`
}

// MarshalID serializes an ID to 8 big-endian bytes so keys sort by ID.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id needs 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalPoint serializes a Point to bytes.
func MarshalPoint(point *core.Point) ([]byte, error) {
	data, err := bson.Marshal(pointDoc{
		ID:         int64(point.ID),
		Collection: point.Collection,
		Text:       point.Text,
		Source:     point.Source,
		ChunkIndex: point.ChunkIndex,
		TextLength: len(point.Text),
		Vector:     point.Vector,
		CreatedAt:  point.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalPoint deserializes a Point from bytes.
func UnmarshalPoint(data []byte) (*core.Point, error) {
	var doc pointDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.Point{
		ID:         core.ID(doc.ID),
		Collection: doc.Collection,
		Text:       doc.Text,
		Source:     doc.Source,
		ChunkIndex: doc.ChunkIndex,
		Vector:     doc.Vector,
		CreatedAt:  doc.CreatedAt.UTC(),
	}, nil
}

// MarshalCollection serializes collection metadata to bytes.
func MarshalCollection(c *core.Collection) ([]byte, error) {
	data, err := bson.Marshal(collectionDoc{
		Name:      c.Name,
		Dimension: c.Dimension,
		CreatedAt: c.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalCollection deserializes collection metadata from bytes.
func UnmarshalCollection(data []byte) (*core.Collection, error) {
	var doc collectionDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &core.Collection{
		Name:      doc.Name,
		Dimension: doc.Dimension,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}
