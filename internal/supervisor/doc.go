// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package supervisor runs Checkpoint's long-lived services under suture v4.

The tree has three layers so a failure in one does not restart the others:

	RootSupervisor ("checkpoint")
	├── StorageSupervisor ("storage-layer")
	│   └── badger-gc (storage.backend=badger)
	├── MonitoringSupervisor ("monitoring-layer")
	│   └── security-retention
	└── APISupervisor ("api-layer")
	    └── http-server

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog into the zerolog pipeline.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMonitoringService(services.NewWorkerService("security-retention", monitorSvc))
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))

	errCh := tree.ServeBackground(ctx)

Services are in the services subpackage.
*/
package supervisor
