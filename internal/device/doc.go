// Package device provides the device catalogue of the dispatch node.
//
// The catalogue records every device the node may talk to and which
// protocol it speaks. The dispatcher never reads it directly: it asks a
// device's Operator for the protocol, and the Operator resolves the
// catalogue entry against the protocol registry.
//
// # Architecture
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────────┐
//	│   Operator   │────▶│   Registry   │────▶│    Repository    │
//	│ (operator.go)│     │ (registry.go)│     │ (repository.go)  │
//	│              │     │              │     │                  │
//	│ • protocol   │     │ • CRUD ops   │     │ • SQLite queries │
//	│   resolution │     │ • cache      │     │ • JSON metadata  │
//	└──────┬───────┘     └──────────────┘     └──────────────────┘
//	       │
//	       ▼
//	┌──────────────────┐
//	│ protocol.Registry│
//	└──────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	catalogue := device.NewRegistry(repo)
//	if err := catalogue.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	op := catalogue.Operator("dev-1", protocols)
//	support, err := op.Protocol(ctx) // UNKNOWN_PROTOCOL when unresolvable
//
// # Thread Safety
//
// The Registry and Operator are safe for concurrent use.
package device
