// Package knowledge seed data: built-in documents covering the basics
// of each production stage, indexed on first startup so the chatbot can
// answer questions before any custom material is ingested.
package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reelwise/reelwise/internal/log"
)

// Seeder indexes the built-in movie production documents.
// Seed documents use fixed IDs ("seed:*") and UPSERT semantics, so
// re-seeding updates them in place without duplicating.
//
// Thread-safe: safe for concurrent use (protected by mu).
type Seeder struct {
	index  Index
	logger log.Logger
	mu     sync.Mutex // Protects SeedAll/ClearAll from concurrent calls
}

// Index is the subset of store operations the Seeder needs.
// Both Store and PGStore satisfy it.
type Index interface {
	Add(ctx context.Context, doc Document) (Document, error)
	Documents(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, docID string) error
}

// NewSeeder creates a seeder for the given index.
func NewSeeder(index Index, logger log.Logger) *Seeder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Seeder{index: index, logger: logger}
}

// SeedAll indexes all built-in documents.
// Called during application startup; individual failures are logged and
// skipped. Returns an error only if every document failed.
func (s *Seeder) SeedAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := seedDocuments()

	successCount := 0
	for _, doc := range docs {
		if _, err := s.index.Add(ctx, doc); err != nil {
			s.logger.Error("failed to index seed document",
				"doc_id", doc.ID,
				"error", err)
			continue
		}
		successCount++
	}

	s.logger.Debug("seed documents indexed",
		"total", len(docs),
		"success", successCount,
		"failed", len(docs)-successCount)

	if successCount == 0 {
		return 0, fmt.Errorf("failed to index any seed documents")
	}
	return successCount, nil
}

// ClearAll removes all seed documents.
// Useful for testing and manual re-seeding.
func (s *Seeder) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.index.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	deletedCount := 0
	for _, doc := range docs {
		if doc.Source != seedSource {
			continue
		}
		if err := s.index.Delete(ctx, doc.ID); err != nil {
			s.logger.Warn("failed to delete seed document",
				"id", doc.ID,
				"error", err)
			continue
		}
		deletedCount++
	}

	s.logger.Info("seed documents cleared", "deleted", deletedCount)
	return nil
}

// seedSource marks documents that ship with the application.
const seedSource = "seed"

// seedDocuments builds the built-in knowledge documents.
func seedDocuments() []Document {
	now := time.Now()

	return []Document{
		{
			ID:       "seed:pre-production-overview",
			Title:    "Pre-Production Fundamentals",
			Category: CategoryPreProduction,
			Source:   seedSource,
			Content: `Pre-production is the planning phase that happens before cameras roll. It covers script development, budgeting, scheduling, casting, location scouting, and crew hiring.

Script breakdown is the first concrete step: the script is divided into eighths of a page and every element each scene needs (cast, props, wardrobe, vehicles, special equipment) is tagged. The breakdown drives both the shooting schedule and the budget.

Storyboarding translates the script into visual frames. Not every production storyboards every scene; action sequences, visual effects shots, and complex camera moves benefit most. Animatics extend storyboards with timing and temp audio.

The shooting schedule groups scenes by location and cast availability rather than story order. A stripboard arranges scene strips so that company moves, actor day-outs, and night shoots are minimized. An experienced first assistant director owns the schedule.

Casting proceeds through breakdowns sent to agents, self-tape or in-person auditions, callbacks, and chemistry reads. Location scouting evaluates look, sound, power, parking, permits, and cover sets for weather contingencies.`,
			CreateAt: now,
		},
		{
			ID:       "seed:production-overview",
			Title:    "Production (Principal Photography) Fundamentals",
			Category: CategoryProduction,
			Source:   seedSource,
			Content: `Production, or principal photography, is the phase where the movie is actually filmed. A typical shooting day runs twelve hours from crew call to wrap.

The set hierarchy flows from the director through the first assistant director, who runs the floor and keeps the day on schedule. Department heads (director of photography, production designer, costume designer, sound mixer) execute the director's vision through their crews.

A standard shooting pattern for a scene: block the action with the actors, light the set while stand-ins hold positions, rehearse on camera, then shoot coverage from wide to tight. The script supervisor tracks continuity, timing, and which takes the director prefers.

Dailies are the raw footage reviewed each day, now usually synced and distributed digitally within hours. Watching dailies early catches focus problems, continuity errors, and performance issues while reshooting is still cheap.

Call sheets go out the night before and list scenes, cast calls, locations, weather, and safety notes. Anything not on the call sheet effectively does not happen.`,
			CreateAt: now,
		},
		{
			ID:       "seed:post-production-overview",
			Title:    "Post-Production Fundamentals",
			Category: CategoryPostProduction,
			Source:   seedSource,
			Content: `Post-production turns raw footage into a finished film: editing, sound design, music, visual effects, color grading, and delivery.

The editor assembles scenes from selected takes, usually starting during the shoot. An editor's cut becomes the director's cut, then the locked picture after producer and studio notes. Picture lock matters because sound, music, and VFX all conform to it.

Sound post splits into dialogue editing (including ADR, re-recorded lines), sound effects and Foley, and the music score. The final mix balances all of these into deliverable stems.

Visual effects shots go through bidding, turnover with editorial counts, vendor production, and review cycles. Temp VFX keep the cut watchable while finals are in progress.

Color grading sets the final look scene by scene and matches shots within scenes. Deliverables include the DCP for theatrical projection, broadcast masters, and streaming mezzanine files, each with their own specs for resolution, color space, and loudness.`,
			CreateAt: now,
		},
		{
			ID:       "seed:all-stages-roles",
			Title:    "Key Roles Across the Production Pipeline",
			Category: CategoryAllStages,
			Source:   seedSource,
			Content: `Some roles span the whole production pipeline rather than belonging to one stage.

The producer initiates the project, arranges financing, and carries responsibility from development through delivery. The line producer manages the budget day to day.

The director owns the creative vision in every stage: shaping the script in pre-production, directing performances during the shoot, and guiding the edit, sound, and color in post.

The production manager and production coordinators handle logistics: contracts, travel, equipment rental, insurance, and clearances.

A completion bond company may oversee the production for financiers, with the power to take over if the film runs badly over budget or schedule.`,
			CreateAt: now,
		},
	}
}
