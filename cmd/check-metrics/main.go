package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./poserig.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println("Metrics History Summary")
	fmt.Println("=======================")
	fmt.Printf("Database: %s\n\n", dbPath)

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM metrics_history").Scan(&total); err != nil {
		log.Fatal("Failed to count records:", err)
	}
	fmt.Printf("Total records: %d\n", total)

	var runs int
	if err := db.QueryRow("SELECT COUNT(DISTINCT run_id) FROM metrics_history").Scan(&runs); err != nil {
		log.Fatal("Failed to count runs:", err)
	}
	fmt.Printf("Distinct runs: %d\n\n", runs)

	if total == 0 {
		fmt.Println("No metrics recorded yet.")
		return
	}

	rows, err := db.Query(`
		SELECT run_id, COUNT(*), MIN(ts), MAX(ts), AVG(fps), AVG(mean_kp_conf)
		FROM metrics_history
		GROUP BY run_id
		ORDER BY MIN(ts) DESC
		LIMIT 10`)
	if err != nil {
		log.Fatal("Failed to query runs:", err)
	}
	defer rows.Close()

	fmt.Println("Recent runs:")
	for rows.Next() {
		var (
			runID           string
			count           int
			minTS, maxTS    float64
			avgFPS, avgConf float64
		)
		if err := rows.Scan(&runID, &count, &minTS, &maxTS, &avgFPS, &avgConf); err != nil {
			log.Fatal("Failed to scan run:", err)
		}

		started := time.Unix(int64(minTS), 0).Format("2006-01-02 15:04:05")
		duration := maxTS - minTS
		fmt.Printf("  %s\n", runID)
		fmt.Printf("    started:  %s\n", started)
		fmt.Printf("    frames:   %d over %.1fs\n", count, duration)
		fmt.Printf("    avg fps:  %.1f\n", avgFPS)
		fmt.Printf("    avg conf: %.2f\n", avgConf)
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Failed to read runs:", err)
	}

	var withPerson int
	if err := db.QueryRow("SELECT COUNT(*) FROM metrics_history WHERE persons > 0").Scan(&withPerson); err != nil {
		log.Fatal("Failed to count detections:", err)
	}
	fmt.Printf("\nFrames with a person: %d/%d (%.1f%%)\n",
		withPerson, total, 100*float64(withPerson)/float64(total))
}
