// Copyright 2026 The DealDesk Authors
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

package permission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealdesk/dealdesk/internal/id"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
)

// Seeder reconciles the versioned seed list against stored catalog rows.
type Seeder struct {
	repo Repository
}

// NewSeeder creates a new catalog seeder
func NewSeeder(repo Repository) *Seeder {
	return &Seeder{repo: repo}
}

// SeedMissing inserts every seed pair that does not yet exist in storage and
// returns the number of rows inserted. Existing rows are never updated or
// deleted, so custom permissions survive a re-run. Calling twice inserts
// nothing the second time.
func (s *Seeder) SeedMissing(ctx context.Context) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p.Key()] = true
	}

	inserted := 0
	for _, seed := range Seeds() {
		key := seed.FeatureArea + ":" + string(seed.PermissionType)
		if present[key] {
			continue
		}
		p := &Permission{
			ID:             id.NewUUIDv7(),
			FeatureArea:    seed.FeatureArea,
			PermissionType: seed.PermissionType,
			Description:    seed.Description,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return inserted, fmt.Errorf("failed to seed %s: %w", key, err)
		}
		inserted++
	}

	if inserted > 0 {
		slog.InfoContext(ctx, "seeded permission catalog",
			logger.Component("permission"),
			slog.Int("inserted", inserted),
		)
	}

	return inserted, nil
}

// ValidateComplete reports whether every seed pair exists in storage.
func (s *Seeder) ValidateComplete(ctx context.Context) (bool, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list catalog: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p.Key()] = true
	}

	for _, seed := range Seeds() {
		if !present[seed.FeatureArea+":"+string(seed.PermissionType)] {
			return false, nil
		}
	}
	return true, nil
}
