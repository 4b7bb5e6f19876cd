package main

import (
	"errors"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"HamDB/ham"
	"HamDB/types"
)

var errMissing = errors.New("missing key")

// engine is the minimal surface both stores share for the workload.
type engine interface {
	Name() string
	Set(key, val []byte) error
	Get(key []byte) ([]byte, error)
	Close() error
}

type hamEngine struct {
	db *ham.DB
}

func openHam(dir string, cacheSize int) (*hamEngine, error) {
	db, err := ham.Create(filepath.Join(dir, "bench.ham"), 0, 0644, ham.Config{
		CacheCapacity: cacheSize,
	})
	if err != nil {
		return nil, err
	}
	return &hamEngine{db: db}, nil
}

func (e *hamEngine) Name() string { return "hamdb" }

func (e *hamEngine) Set(key, val []byte) error {
	return e.db.Insert(key, val, 0)
}

func (e *hamEngine) Get(key []byte) ([]byte, error) {
	val, err := e.db.Find(key, 0)
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil, errMissing
	}
	return val, err
}

func (e *hamEngine) Close() error { return e.db.Close() }

type pebbleEngine struct {
	db *pebble.DB
}

func openPebble(dir string) (*pebbleEngine, error) {
	db, err := pebble.Open(filepath.Join(dir, "bench.pebble"), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &pebbleEngine{db: db}, nil
}

func (e *pebbleEngine) Name() string { return "pebble" }

func (e *pebbleEngine) Set(key, val []byte) error {
	return e.db.Set(key, val, pebble.NoSync)
}

func (e *pebbleEngine) Get(key []byte) ([]byte, error) {
	val, closer, err := e.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, errMissing
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), val...)
	return out, closer.Close()
}

func (e *pebbleEngine) Close() error { return e.db.Close() }
