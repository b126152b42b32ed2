// Package services holds the business logic between the HTTP handlers and
// the command line on one side and the acquisition and transform packages
// on the other.
//
// DatasetService loads a snapshot through a DatasetLoader and derives the
// requested slice from it. Every result carries a Meta block so callers can
// tell a stale snapshot from a fresh one:
//
//	svc := services.NewDatasetService(source, logger,
//	    services.WithThresholds(cfg.Transform.Thresholds),
//	    services.WithTracer(providers.Tracer),
//	    services.WithMetrics(metrics),
//	)
//	res, err := svc.State(ctx, "SP")
//	if err != nil {
//	    return err
//	}
//	if res.Stale {
//	    // the refresh failed and the previous copy was used
//	}
//
// HealthService reports the data directory and the last loaded snapshot.
package services
