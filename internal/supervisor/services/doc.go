// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package services adapts Checkpoint components to suture.Service.

HTTPServerService turns ListenAndServe/Shutdown into a context-aware Serve
with a bounded graceful shutdown. WorkerService wraps anything with a
RunWithContext loop, such as the security retention worker and the badger
value log GC.

Every wrapper implements fmt.Stringer so suture log lines name the service.
*/
package services
