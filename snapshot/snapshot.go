// Package snapshot
//
// (C) Copyright Alex Gaetano Padula
//
// Licensed under the Mozilla Public License, v. 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// Version is the current document version
const Version int32 = 1

// headerSize is the little-endian xxhash64 of the payload
const headerSize = 8

var (
	ErrTruncated = errors.New("snapshot: data shorter than header")
	ErrChecksum  = errors.New("snapshot: checksum mismatch")
	ErrVersion   = errors.New("snapshot: unsupported version")
	ErrCorrupt   = errors.New("snapshot: item count mismatch")
)

// document is the bson payload of a snapshot.  Items are top of stack first.
type document[T any] struct {
	Version int32 `bson:"version"`
	Count   int64 `bson:"count"`
	Items   []T   `bson:"items"`
}

// Encode serializes items into a checksummed snapshot
func Encode[T any](items []T) ([]byte, error) {
	payload, err := bson.Marshal(&document[T]{
		Version: Version,
		Count:   int64(len(items)),
		Items:   items,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}

	data := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint64(data[:headerSize], xxhash.Sum64(payload))
	copy(data[headerSize:], payload)

	return data, nil
}

// Decode verifies and deserializes a snapshot produced by Encode
func Decode[T any](data []byte) ([]T, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}

	payload := data[headerSize:]
	if binary.LittleEndian.Uint64(data[:headerSize]) != xxhash.Sum64(payload) {
		return nil, ErrChecksum
	}

	var doc document[T]
	if err := bson.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}

	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}

	if doc.Count != int64(len(doc.Items)) {
		return nil, fmt.Errorf("%w: header says %d, found %d", ErrCorrupt, doc.Count, len(doc.Items))
	}

	return doc.Items, nil
}

// Write encodes items to w
func Write[T any](w io.Writer, items []T) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}

	return nil
}

// Read decodes a snapshot from r
func Read[T any](r io.Reader) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}

	return Decode[T](data)
}
