package app

import (
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
)

type Repos struct {
	Manuscripts   repos.ManuscriptRepo
	Assignments   repos.ReviewAssignmentRepo
	Reports       repos.ReviewReportRepo
	Letters       repos.DecisionLetterRepo
	Cycles        repos.ProductionCycleRepo
	Responses     repos.ProofreadingResponseRepo
	Runs          repos.ValidationRunRepo
	Checks        repos.ValidationCheckRepo
	Trail         repos.TransitionLogRepo
	Users         repos.UserRepo
	Members       repos.JournalMemberRepo
	Notifications repos.NotificationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Manuscripts:   repos.NewManuscriptRepo(db, log),
		Assignments:   repos.NewReviewAssignmentRepo(db, log),
		Reports:       repos.NewReviewReportRepo(db, log),
		Letters:       repos.NewDecisionLetterRepo(db, log),
		Cycles:        repos.NewProductionCycleRepo(db, log),
		Responses:     repos.NewProofreadingResponseRepo(db, log),
		Runs:          repos.NewValidationRunRepo(db, log),
		Checks:        repos.NewValidationCheckRepo(db, log),
		Trail:         repos.NewTransitionLogRepo(db, log),
		Users:         repos.NewUserRepo(db, log),
		Members:       repos.NewJournalMemberRepo(db, log),
		Notifications: repos.NewNotificationRepo(db, log),
	}
}
