// Package audit records device catalogue changes and device session
// activity in the audit_logs table.
//
// Entries are written by the HTTP gateway: catalogue create, update and
// delete requests, and device sessions connecting, disconnecting or being
// refused. The gateway writes them asynchronously so a slow disk never
// delays a request or a socket.
//
// # Usage
//
//	repo := audit.NewSQLiteRepository(db.DB)
//	err := repo.Create(ctx, &audit.Entry{
//	    Action:   audit.ActionConnect,
//	    DeviceID: "dev-1",
//	    ServerID: "node-a",
//	    Source:   audit.SourceGateway,
//	})
//
//	page, err := repo.List(ctx, audit.Filter{DeviceID: "dev-1"})
package audit
