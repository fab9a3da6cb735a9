package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/cache"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/requestdata"
)

const (
	RoleAdmin            = "admin"
	RoleManagingEditor   = "managing_editor"
	RoleEditorInChief    = "editor_in_chief"
	RoleAssistantEditor  = "assistant_editor"
	RoleEditor           = "editor"
	RoleProductionEditor = "production_editor"
	RoleAuthor           = "author"
	RoleReviewer         = "reviewer"
)

// InternalEditorRoles may always see decision attachments and act on
// editorial operations.
var InternalEditorRoles = []string{RoleAdmin, RoleManagingEditor, RoleEditorInChief}

// JournalScope is the resolved scope of a caller: either an explicit journal
// id set or unrestricted access.
type JournalScope struct {
	Unrestricted bool
	JournalIDs   []uuid.UUID
}

func (s JournalScope) Contains(journalID uuid.UUID) bool {
	if s.Unrestricted {
		return true
	}
	for _, id := range s.JournalIDs {
		if id == journalID {
			return true
		}
	}
	return false
}

// ScopeResolver answers which journals a caller may act on. Admins are
// unrestricted; everyone else is scoped by journal membership rows.
type ScopeResolver interface {
	ScopedJournalIDs(ctx context.Context, actor *requestdata.RequestData) (JournalScope, error)
}

type scopeResolver struct {
	db      *gorm.DB
	log     *logger.Logger
	members repos.JournalMemberRepo
	cache   cache.Cache
	ttl     time.Duration
}

func NewScopeResolver(db *gorm.DB, baseLog *logger.Logger, members repos.JournalMemberRepo, c cache.Cache) ScopeResolver {
	return &scopeResolver{
		db:      db,
		log:     baseLog.With("service", "ScopeResolver"),
		members: members,
		cache:   c,
		ttl:     60 * time.Second,
	}
}

func (s *scopeResolver) ScopedJournalIDs(ctx context.Context, actor *requestdata.RequestData) (JournalScope, error) {
	if actor == nil || actor.UserID == uuid.Nil {
		return JournalScope{}, nil
	}
	if actor.HasRole(RoleAdmin) {
		return JournalScope{Unrestricted: true}, nil
	}

	key := cache.Key("journal_scope", actor.UserID.String())
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var ids []uuid.UUID
			if err := json.Unmarshal([]byte(raw), &ids); err == nil {
				return JournalScope{JournalIDs: ids}, nil
			}
		}
	}

	ids, err := s.members.ListJournalIDsByUser(ctx, nil, actor.UserID)
	if err != nil {
		return JournalScope{}, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(ids); err == nil {
			s.cache.Set(ctx, key, string(raw), s.ttl)
		}
	}
	return JournalScope{JournalIDs: ids}, nil
}
