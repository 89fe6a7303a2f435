// Package store caches downloaded message content, either in memory or in a badger database on disk.
package store
