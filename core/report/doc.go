// Package report is the boundary of the report engine: it creates tasks from
// catalog definitions, runs them, streams their progress and saves them.
//
//	service := report.New(catalog,
//	    report.WithExecutor(liveExecutor),
//	    report.WithStore(pgstore.New(pool)),
//	)
//	defer service.Close()
//
//	taskID, err := service.CreateTask(ctx, "ACME", "company", task.Options{WebSearch: true})
//	subscription, err := service.Subscribe(ctx, taskID)
package report
