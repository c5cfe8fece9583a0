// Package registry tracks which devices on the local network are present.
//
// Devices register themselves periodically with an identifier and an address.
// A Store holds one DeviceRecord per identifier; a Sweeper marks records
// offline once they have been silent for longer than the offline timeout;
// a Service validates requests and applies them to the Store.
//
// Status is eventually consistent. It changes only when a device registers
// or a sweep runs, never on read, so a listed device may be reported online
// for up to one sweep interval after it went stale.
//
// Store implementations:
//   - SQLiteStore: the devices table, one statement per operation
//   - MemoryStore: a mutex-guarded map for ephemeral deployments and tests
//
// Usage:
//
//	store := registry.NewSQLiteStore(db.DB)
//	clock := clockwork.NewRealClock()
//
//	svc := registry.NewService(store, clock)
//	sweeper := registry.NewSweeper(store, clock, registry.SweeperConfig{
//	    Interval:       15 * time.Second,
//	    OfflineTimeout: 90 * time.Second,
//	})
//	if err := sweeper.Start(ctx); err != nil {
//	    return err
//	}
//	defer sweeper.Stop()
//
//	err := svc.Register(ctx, registry.RegisterRequest{Identifier: "esp32-kitchen", Address: "192.168.1.40"})
package registry
