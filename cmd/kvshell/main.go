package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/SimonWaldherr/tinykv/internal/storage/engine"
)

var (
	flagFile     = flag.String("file", "kvshell.db", "table file to open")
	flagNumBuf   = flag.Int("num-buf", 64, "number of buffer pool frames")
	flagNumHT    = flag.Int("num-ht", 0, "hashtable bucket count (0 = 2x num-buf)")
	flagNonInter = flag.Bool("batch", false, "suppress interactive prompts (for piped input)")
	flagConfig   = flag.String("config", "", "YAML config file; overrides -num-buf/-num-ht and prefixes -file with data_dir")
)

// resolveSettings applies a loaded Config on top of the flag defaults:
// NumBuf/NumHTEntries override when positive, and DataDir prefixes file
// when file is relative. A zero-value Config (configPath == "") leaves
// the flag defaults untouched.
func resolveSettings(configPath string, numHT, numBuf int, file string) (int, int, string, error) {
	if configPath == "" {
		return numHT, numBuf, file, nil
	}
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return 0, 0, "", err
	}
	if cfg.NumBuf > 0 {
		numBuf = cfg.NumBuf
	}
	if cfg.NumHTEntries > 0 {
		numHT = cfg.NumHTEntries
	}
	if cfg.DataDir != "" && !filepath.IsAbs(file) {
		file = filepath.Join(cfg.DataDir, file)
	}
	return numHT, numBuf, file, nil
}

func main() {
	flag.Parse()

	numHT, numBuf, file, err := resolveSettings(*flagConfig, *flagNumHT, *flagNumBuf, *flagFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	db, err := engine.InitDB(numHT, numBuf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init error:", err)
		os.Exit(1)
	}
	defer db.Shutdown()

	tableID, err := db.OpenTable(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open error:", err)
		os.Exit(1)
	}

	os.Exit(runShell(db, tableID, os.Stdin, os.Stdout, *flagNonInter))
}

// runShell is an illustrative interactive shell: single-character
// commands for insert, find, delete, scan, print-stats and quit.
func runShell(db *engine.Engine, tableID engine.TableID, in *os.File, out *os.File, batch bool) int {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	interactive := !batch
	if interactive {
		if fi, err := in.Stat(); err == nil {
			interactive = (fi.Mode() & os.ModeCharDevice) != 0
		}
	}

	for {
		if interactive {
			fmt.Fprint(out, "kv> ")
		}
		if !sc.Scan() {
			return 0
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "i":
			handleInsert(db, tableID, args, out)
		case "f":
			handleFind(db, tableID, args, out)
		case "d":
			handleDelete(db, tableID, args, out)
		case "s":
			handleScan(db, tableID, args, out)
		case "p":
			handleStats(db, out)
		case "q":
			return 0
		default:
			fmt.Fprintf(out, "unknown command %q (use i/f/d/s/p/q)\n", cmd)
		}
	}
}

func handleInsert(db *engine.Engine, tableID engine.TableID, args []string, out *os.File) {
	if len(args) < 2 {
		fmt.Fprintln(out, "usage: i <key> <value>")
		return
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "bad key:", err)
		return
	}
	value := strings.Join(args[1:], " ")
	if err := db.Insert(tableID, key, []byte(value)); err != nil {
		fmt.Fprintln(out, "ERR:", err)
		return
	}
	fmt.Fprintln(out, "ok")
}

func handleFind(db *engine.Engine, tableID engine.TableID, args []string, out *os.File) {
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: f <key>")
		return
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "bad key:", err)
		return
	}
	value, err := db.Find(tableID, key)
	if err != nil {
		fmt.Fprintln(out, "ERR:", err)
		return
	}
	fmt.Fprintf(out, "%d -> %s\n", key, value)
}

func handleDelete(db *engine.Engine, tableID engine.TableID, args []string, out *os.File) {
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: d <key>")
		return
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "bad key:", err)
		return
	}
	if err := db.Delete(tableID, key); err != nil {
		fmt.Fprintln(out, "ERR:", err)
		return
	}
	fmt.Fprintln(out, "ok")
}

func handleScan(db *engine.Engine, tableID engine.TableID, args []string, out *os.File) {
	if len(args) < 2 {
		fmt.Fprintln(out, "usage: s <begin> <end>")
		return
	}
	begin, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "bad begin:", err)
		return
	}
	end, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintln(out, "bad end:", err)
		return
	}
	err = db.Scan(tableID, begin, end, func(key int64, value []byte) bool {
		fmt.Fprintf(out, "%d -> %s\n", key, value)
		return true
	})
	if err != nil {
		fmt.Fprintln(out, "ERR:", err)
	}
}

func handleStats(db *engine.Engine, out *os.File) {
	s := db.Stats()
	fmt.Fprintf(out, "gets=%d reads=%d writes=%d hit_ratio=%d%%\n",
		s.GetBufferCount, s.ReadPageCount, s.WritePageCount, s.HitRatio())
}
