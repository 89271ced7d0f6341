// Package strict implements strict-fetch enforcement: the State token carried
// by queries and records, the process-wide override, and the decision table
// applied on every checked access.
//
// A State is a small value. Every derivation (query clone, record
// materialization, relation access) copies it; nothing shares a State by
// reference except the weak root pointer, which is only ever read to ask
// whether the originating query is still populating its collection caches.
//
// Effective enablement is the global override when one is set, otherwise the
// local flag. The override is read on every call to Enabled and never cached:
//
//	strict.SetOverride(strict.OverrideForceOff)
//	defer strict.ResetOverride()
//
// Decision table (effective state enabled):
//
//	scalar, loaded                      pass
//	scalar, deferred, not in ancestor   DEFERRED_FIELD_ACCESSED
//	to-one, cached                      pass (caller derives child state)
//	to-one, empty                       RELATION_NOT_FETCHED
//	to-many, root is prefetching        pass
//	to-many, cached                     pass (caller derives child state)
//	to-many, empty                      RELATION_NOT_FETCHED
//	mutation of a populated child query QUERY_MUTATED_AFTER_FETCH
//
// With the effective state disabled every access passes.
package strict
