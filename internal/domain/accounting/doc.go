// Package accounting contains the external-accounting synchronization bounded
// context: exchanging parents (contacts), invoices, payments, bank feed
// entries and manual journals with a third-party accounting provider.
//
// Key concepts:
//   - AccountingProvider: Port interface for a concrete accounting vendor (Xero)
//   - EntitySyncMapping: Entity mapping internal records to provider-assigned IDs
//   - Journal: Manual journal entry validated for double-entry balance
//   - SyncRunResult: Partial-failure-tolerant aggregate of one orchestration run
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package accounting
