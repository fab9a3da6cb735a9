package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/app"
	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/services"
	"github.com/lumenpress/editorial-core/internal/types"
)

func main() {
	var environment string
	var operator string
	var forceNoGo bool
	var migrateOnly bool
	flag.StringVar(&environment, "env", "staging", "target environment for release validation")
	flag.StringVar(&operator, "operator", "", "user id of the operator running the validation")
	flag.BoolVar(&forceNoGo, "force-no-go", false, "force a NO-GO decision regardless of check results")
	flag.BoolVar(&migrateOnly, "migrate-only", false, "run schema migration and exit")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if migrateOnly {
		fmt.Println("migration complete")
		return
	}

	operatorID, err := uuid.Parse(operator)
	if err != nil || operatorID == uuid.Nil {
		fmt.Println("a valid -operator user id is required")
		os.Exit(1)
	}

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	actor := &requestdata.RequestData{
		UserID: operatorID,
		Roles:  []string{services.RoleAdmin},
	}

	run, err := application.Services.Release.CreateRun(dbc, environment, actor)
	if err != nil {
		fmt.Printf("create run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("validation run %s created for %s\n", run.ID, run.Environment)

	if run, err = application.Services.Release.ExecuteReadiness(dbc, run.ID); err != nil {
		fmt.Printf("readiness phase: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("readiness executed: blocking=%d failed=%d skipped=%d\n",
		run.BlockingFailures, run.FailedCount, run.SkippedCount)

	if run, err = application.Services.Release.ExecuteRegression(dbc, run.ID); err != nil {
		fmt.Printf("regression phase: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("regression executed: blocking=%d failed=%d skipped=%d\n",
		run.BlockingFailures, run.FailedCount, run.SkippedCount)

	if run, err = application.Services.Release.Finalize(dbc, run.ID, forceNoGo); err != nil {
		fmt.Printf("finalize: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("readiness=%s regression=%s decision=%s\n",
		run.ReadinessStatus, run.RegressionStatus, run.ReleaseDecision)
	if run.ReleaseDecision == types.ReleaseDecisionNoGo {
		fmt.Println("rollback required; remediation plan recorded on the run")
		os.Exit(2)
	}
}
