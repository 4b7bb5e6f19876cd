// hamctl drives a database file from the command line.
// Usage: hamctl <create|insert|find|erase|dump|check|stats> [flags] <args>
// Exit code 0 on success; non-zero codes mirror the engine's error
// kinds.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"HamDB/ham"
	"HamDB/logging"
	"HamDB/types"
)

type globals struct {
	Verbose bool `short:"v" help:"Log engine diagnostics to stderr."`
	Cache   int  `default:"128" help:"Page cache capacity in pages (0 disables caching)."`
}

func (g *globals) config() ham.Config {
	cfg := ham.Config{CacheCapacity: g.Cache}
	if g.Verbose {
		cfg.Logger = logging.New(logging.LevelDebug, logging.FormatText, os.Stderr)
	}
	return cfg
}

type createCmd struct {
	Path     string `arg:"" help:"Database file to create."`
	PageSize uint16 `default:"4096" help:"Page size in bytes, multiple of 512."`
	KeySize  uint16 `default:"21" help:"Inline key capacity per slot."`
}

func (c *createCmd) Run(g *globals) error {
	cfg := g.config()
	cfg.PageSize = c.PageSize
	cfg.KeySize = c.KeySize
	db, err := ham.Create(c.Path, 0, 0644, cfg)
	if err != nil {
		return err
	}
	return db.Close()
}

type insertCmd struct {
	Path  string `arg:""`
	Key   string `arg:""`
	Value string `arg:""`
}

func (c *insertCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, 0, g.config())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Insert([]byte(c.Key), []byte(c.Value), 0); err != nil {
		return err
	}
	return db.Close()
}

type findCmd struct {
	Path string `arg:""`
	Key  string `arg:""`
}

func (c *findCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, types.ReadOnly, g.config())
	if err != nil {
		return err
	}
	defer db.Close()
	record, err := db.Find([]byte(c.Key), 0)
	if err != nil {
		return err
	}
	os.Stdout.Write(record)
	fmt.Println()
	return nil
}

type eraseCmd struct {
	Path string `arg:""`
	Key  string `arg:""`
}

func (c *eraseCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, 0, g.config())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Erase([]byte(c.Key), 0); err != nil {
		return err
	}
	return db.Close()
}

type dumpCmd struct {
	Path string `arg:""`
}

func (c *dumpCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, types.ReadOnly, g.config())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Scan(func(key, record []byte) error {
		fmt.Printf("%q\t%d bytes\n", key, len(record))
		return nil
	})
}

type checkCmd struct {
	Path string `arg:""`
}

func (c *checkCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, types.ReadOnly, g.config())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.CheckIntegrity(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

type statsCmd struct {
	Path string `arg:""`
}

func (c *statsCmd) Run(g *globals) error {
	db, err := ham.Open(c.Path, types.ReadOnly, g.config())
	if err != nil {
		return err
	}
	defer db.Close()

	count := 0
	if err := db.Scan(func(key, record []byte) error {
		count++
		return nil
	}); err != nil {
		return err
	}

	m := db.Metrics()
	fmt.Printf("pagesize:        %d\n", db.PageSize())
	fmt.Printf("keysize:         %d\n", db.KeySize())
	fmt.Printf("keys:            %d\n", count)
	fmt.Printf("pages fetched:   %d\n", m.PagesFetched)
	fmt.Printf("cache hits:      %d\n", m.CacheHits)
	fmt.Printf("cache misses:    %d\n", m.CacheMisses)
	fmt.Printf("blobs read:      %d\n", m.BlobsRead)
	return nil
}

var cli struct {
	globals

	Create createCmd `cmd:"" help:"Create a new database file."`
	Insert insertCmd `cmd:"" help:"Insert a key/value pair."`
	Find   findCmd   `cmd:"" help:"Print the record stored under a key."`
	Erase  eraseCmd  `cmd:"" help:"Remove a key."`
	Dump   dumpCmd   `cmd:"" help:"List all keys in order."`
	Check  checkCmd  `cmd:"" help:"Verify the database integrity."`
	Stats  statsCmd  `cmd:"" help:"Show header fields and engine counters."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("hamctl"),
		kong.Description("Inspect and edit HamDB database files."))
	if err := ctx.Run(&cli.globals); err != nil {
		fmt.Fprintf(os.Stderr, "hamctl: %v\n", err)
		os.Exit(types.ExitCode(err))
	}
}
