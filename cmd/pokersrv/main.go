package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/vctt94/pokertable/pkg/poker"
	"github.com/vctt94/pokertable/pkg/server"
)

func main() {
	var (
		dbPath       string
		debugLevel   string
		seed         int64
		sweepMs      int
		smallBlind   int64
		bigBlind     int64
		limit        string
		rakeBps      int64
		rakeCap      int64
		timeBankSecs int
	)
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Int64Var(&seed, "seed", 0, "Deterministic RNG seed for decks (0 = crypto-random)")
	flag.IntVar(&sweepMs, "sweepms", 500, "Timeout sweep interval in milliseconds")
	flag.Int64Var(&smallBlind, "sb", 10, "Small blind for the default table")
	flag.Int64Var(&bigBlind, "bb", 20, "Big blind for the default table")
	flag.StringVar(&limit, "limit", "no-limit", "Betting structure: no-limit, pot-limit, fixed-limit")
	flag.Int64Var(&rakeBps, "rakebps", 0, "Rake in basis points of each pot")
	flag.Int64Var(&rakeCap, "rakecap", 0, "Maximum rake per hand in atoms")
	flag.IntVar(&timeBankSecs, "timebank", 30, "Seconds each player has to act")
	flag.Parse()

	// Optional .env overlay for deployment settings.
	_ = godotenv.Load()

	if dbPath == "" {
		if env := os.Getenv("POKERTABLE_DB"); env != "" {
			dbPath = env
		} else {
			dbPath = filepath.Join(os.TempDir(), "pokertable.sqlite")
		}
	}
	if seed == 0 {
		if env := os.Getenv("POKERTABLE_SEED"); env != "" {
			if v, err := strconv.ParseInt(env, 10, 64); err == nil {
				seed = v
			}
		}
	}

	db, err := server.NewDatabase(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	logBackend, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: debugLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger("SRV")

	var limitType poker.LimitType
	switch limit {
	case "no-limit":
		limitType = poker.NoLimit
	case "pot-limit":
		limitType = poker.PotLimit
	case "fixed-limit":
		limitType = poker.FixedLimit
	default:
		fmt.Fprintf(os.Stderr, "unknown limit type %q\n", limit)
		os.Exit(1)
	}

	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
		log.Warnf("running with deterministic deck seed %d", seed)
	}

	srv := server.NewServer(log, db)
	_, err = srv.CreateTable(server.TableConfig{
		ID:         "main",
		Log:        logBackend.Logger("TABLE"),
		HandLog:    logBackend.Logger("HAND"),
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
		Limit:      limitType,
		RakeBps:    rakeBps,
		RakeCap:    rakeCap,
		MinBuyIn:   bigBlind * 20,
		MaxBuyIn:   bigBlind * 200,
		TimeBank:   time.Duration(timeBankSecs) * time.Second,
		Rand:       rng,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create table: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartSweeper(ctx, time.Duration(sweepMs)*time.Millisecond)

	// Drain events so table publication never stalls.
	go func() {
		for ev := range srv.Events() {
			log.Debugf("event %s on table %s: %v", ev.Type, ev.TableID, ev.Payload)
		}
	}()

	log.Infof("pokertable server running, db at %s", dbPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")
}
