// Package app wires the covid dataset service together and manages its
// lifecycle.
//
// NewApplication resolves paths, initializes logging and OpenTelemetry,
// builds the acquisition source and the dataset, health and export
// services, and mounts the HTTP API:
//
//	cfg, _ := config.Load("")
//	a, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// Run serves until SIGINT or SIGTERM, then drains in-flight requests within
// Server.ShutdownTimeout and flushes telemetry. Command-line subcommands that
// do not serve HTTP use the same Application and call Close when done.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
