package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"fleetscan/internal/server"
)

func main() {
	purgeID := flag.Int64("purge", 0, "delete the snapshot with this id (children cascade)")
	flag.Parse()

	dbPath := os.Getenv("FLEET_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/fleetscan.db"
	}

	db, err := server.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	store := server.NewSQLiteStore(db)
	ctx := context.Background()

	if *purgeID > 0 {
		if err := store.DeleteSnapshot(ctx, *purgeID); err != nil {
			log.Fatalf("purge %d failed: %v", *purgeID, err)
		}
		fmt.Printf("purged snapshot %d\n", *purgeID)
	}

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name;`)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	fmt.Println("Tables:")
	for rows.Next() {
		var name string
		_ = rows.Scan(&name)
		var n int
		_ = db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q;`, name)).Scan(&n)
		fmt.Printf(" - %s (%d rows)\n", name, n)
	}

	total, err := store.CountSnapshots(ctx)
	if err != nil {
		log.Fatalf("count failed: %v", err)
	}
	fmt.Println("Snapshots:", total)

	if total > 0 {
		recs, err := store.ListSnapshots(ctx, "", int(total-1), 1)
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		if len(recs) == 1 {
			r := recs[0]
			fmt.Printf("Latest: id=%d client_ip=%s host=%s os=%s/%s processes=%d users=%d\n",
				r.ID, r.ClientIP, r.Hostname, r.OSName, r.OSVersion, len(r.Processes), len(r.Users))
		}
	}
}
