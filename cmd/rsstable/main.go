// Command rsstable is a minimal interactive shell over an engine, useful
// for manual smoke testing. It is not part of the engine's contract.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/petitviolet/rsstable/engine"
)

func main() {
	dir := pflag.StringP("dir", "d", "./rsstable-data", "engine data directory")
	maxEntries := pflag.IntP("max-entries", "m", 1024, "memtable flush threshold")
	pflag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	e, err := engine.New(engine.Dir(*dir), engine.MaxEntries(*maxEntries), engine.Logger(sugar))
	if err != nil {
		sugar.Fatalw("failed to open engine", "error", err)
	}
	defer e.Close()

	repl(e, sugar)
}

// repl reads "get key", "insert key value", "delete key", "clear" lines
// from stdin until EOF.
func repl(e *engine.Engine, log *zap.SugaredLogger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			v, found, err := e.Get(fields[1])
			if err != nil {
				log.Errorw("get failed", "key", fields[1], "error", err)
				continue
			}
			if !found {
				fmt.Println("(not found)")
				continue
			}
			fmt.Println(v)

		case "insert":
			if len(fields) != 3 {
				fmt.Println("usage: insert <key> <value>")
				continue
			}
			if err := e.Insert(fields[1], fields[2]); err != nil {
				log.Errorw("insert failed", "key", fields[1], "error", err)
			}

		case "delete":
			if len(fields) != 2 {
				fmt.Println("usage: delete <key>")
				continue
			}
			if err := e.Delete(fields[1]); err != nil {
				log.Errorw("delete failed", "key", fields[1], "error", err)
			}

		case "clear":
			if err := e.Clear(); err != nil {
				log.Errorw("clear failed", "error", err)
			}

		default:
			fmt.Println("commands: get <key> | insert <key> <value> | delete <key> | clear")
		}
	}
}
