package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/platform/envutil"
	"github.com/lumenpress/editorial-core/internal/types"
)

const (
	PolicyHitConflictOfInterest = "conflict_of_interest"
	PolicyHitCooldownActive     = "cooldown_active"
	PolicyHitOverdueOpen        = "overdue_open"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

type PolicyConfig struct {
	CooldownDays   int
	DueMinDays     int
	DueMaxDays     int
	DueDefaultDays int
	// OverrideRoles may push an assignment through an active cooldown.
	OverrideRoles []string
}

func PolicyConfigFromEnv() PolicyConfig {
	return PolicyConfig{
		CooldownDays:   envutil.Int("REVIEW_COOLDOWN_DAYS", 30),
		DueMinDays:     envutil.Int("REVIEW_DUE_MIN_DAYS", 7),
		DueMaxDays:     envutil.Int("REVIEW_DUE_MAX_DAYS", 60),
		DueDefaultDays: envutil.Int("REVIEW_DUE_DEFAULT_DAYS", 21),
		OverrideRoles:  envutil.Strings("REVIEW_COOLDOWN_OVERRIDE_ROLES", []string{RoleAdmin, RoleEditorInChief, RoleManagingEditor}),
	}
}

// PolicyHit is one rendered signal; ordered so callers can show everything
// even when nothing blocks.
type PolicyHit struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Blocking bool   `json:"blocking"`
	Detail   string `json:"detail"`
}

type PolicyResult struct {
	ReviewerID       uuid.UUID   `json:"reviewer_id"`
	CanAssign        bool        `json:"can_assign"`
	Conflict         bool        `json:"conflict"`
	CooldownActive   bool        `json:"cooldown_active"`
	CooldownUntil    *time.Time  `json:"cooldown_until,omitempty"`
	OverdueOpenCount int         `json:"overdue_open_count"`
	Hits             []PolicyHit `json:"hits"`
}

// PolicyInputs carries the per-reviewer signals the orchestrator gathered
// from the store, keeping Evaluate itself pure.
type PolicyInputs struct {
	// RecentSameJournal holds the reviewer's assignments on manuscripts of
	// the same journal, newest first; only invites inside the cooldown
	// window matter.
	RecentSameJournal map[uuid.UUID][]*types.ReviewAssignment
	OverdueOpen       map[uuid.UUID]int
}

// Evaluate scores every candidate. Conflict of interest is the only hard
// block; cooldown stays advisory because editorial judgment should not be
// hard-blocked by a heuristic.
func Evaluate(m *types.Manuscript, candidates []uuid.UUID, in PolicyInputs, now time.Time, cfg PolicyConfig) map[uuid.UUID]PolicyResult {
	out := make(map[uuid.UUID]PolicyResult, len(candidates))
	for _, reviewerID := range candidates {
		res := PolicyResult{ReviewerID: reviewerID, CanAssign: true}

		if m != nil && reviewerID == m.AuthorID {
			res.Conflict = true
			res.CanAssign = false
			res.Hits = append(res.Hits, PolicyHit{
				Code:     PolicyHitConflictOfInterest,
				Label:    "Conflict of interest",
				Severity: SeverityError,
				Blocking: true,
				Detail:   "candidate is the manuscript author",
			})
		}

		window := time.Duration(cfg.CooldownDays) * 24 * time.Hour
		var latest time.Time
		for _, a := range in.RecentSameJournal[reviewerID] {
			if a == nil {
				continue
			}
			if now.Sub(a.InvitedAt) <= window && a.InvitedAt.After(latest) {
				latest = a.InvitedAt
			}
		}
		if !latest.IsZero() {
			until := latest.Add(window)
			res.CooldownActive = true
			res.CooldownUntil = &until
			res.Hits = append(res.Hits, PolicyHit{
				Code:     PolicyHitCooldownActive,
				Label:    "Recently invited",
				Severity: SeverityWarning,
				Blocking: false,
				Detail:   fmt.Sprintf("cooldown until %s", until.UTC().Format(time.RFC3339)),
			})
		}

		if n := in.OverdueOpen[reviewerID]; n > 0 {
			res.OverdueOpenCount = n
			res.Hits = append(res.Hits, PolicyHit{
				Code:     PolicyHitOverdueOpen,
				Label:    "Overdue reviews open",
				Severity: SeverityInfo,
				Blocking: false,
				Detail:   fmt.Sprintf("%d overdue assignment(s) open", n),
			})
		}

		out[reviewerID] = res
	}
	return out
}

// DueWindow returns the legal due-date window and the clamped default due
// date for an invite issued at now.
func DueWindow(cfg PolicyConfig, now time.Time) (min, max, def time.Time) {
	min = now.AddDate(0, 0, cfg.DueMinDays)
	max = now.AddDate(0, 0, cfg.DueMaxDays)
	defaultDays := cfg.DueDefaultDays
	if defaultDays > cfg.DueMaxDays {
		defaultDays = cfg.DueMaxDays
	}
	if defaultDays < cfg.DueMinDays {
		defaultDays = cfg.DueMinDays
	}
	def = now.AddDate(0, 0, defaultDays)
	return min, max, def
}
