// Package store defines persistence of saved task records.
//
// Implementations live in subpackages: memstore keeps records in memory,
// pgstore writes them to PostgreSQL and badgerstore to an embedded Badger
// database. Saving the same record twice leaves the store unchanged.
package store
