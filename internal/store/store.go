// Copyright (c) 2026 John Earle
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

// Package store provides the object-store capability the pipeline consumes
// and its S3 implementation. Key layout:
//
//	incoming/<tenant>/<id>
//	processed/<tenant>/{service_requests|non_service_requests}/<YYYY-MM>/<slug>
//	errors/<id>_<epochMillis>
package store

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object from a listing.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// Store is the narrow object-store capability. Implementations must make
// Copy overwrite-idempotent: re-copying to an existing destination is not
// an error.
type Store interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
}
