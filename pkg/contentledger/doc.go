// Package contentledger provides a registry of creator-owned content and an
// append-only ledger of purchases made against it.
//
// It exposes a single Service interface that registers content, toggles its
// availability, records payments and answers purchase and revenue queries.
// Every mutating call runs as one indivisible step: the payment record, the
// content counters, the purchase index and the global stats either all change
// together or not at all. Reads observe the most recently committed state.
//
// Derived State
//
// Only content registrations and payment records are primary data. Per-content
// sales counters, the (buyer, content) purchase index and the global stats are
// materialized views. They are maintained incrementally on every write and can
// be recomputed from the primary stores at any time; Verify compares both and
// halts further mutation when they disagree.
//
// Every service journals through a Repository, which New requires; use
// repo/memory for a process-local ledger. Postgres and SQLite implementations
// also live under repo/. On construction the service replays contents and
// then payments in creation order to rebuild every derived view.
package contentledger
