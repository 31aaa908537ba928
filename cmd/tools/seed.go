package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"mini-base/auth"
	"mini-base/moderation"
)

// Operator bootstrap tool. Seeds the moderation blacklist into Badger
// and hashes the operator password for OPERATOR_PASSWORD_HASH.
// Run it while the gateway is stopped, Badger is single-writer.
func main() {
	dbPath := flag.String("db", "./badger", "Path to badger DB")
	wordsFile := flag.String("words", "", "File with one banned word per line")
	password := flag.String("hash-password", "", "Print the argon2id hash of this password and exit")
	flag.Parse()

	if *password != "" {
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatal("Hashing failed: ", err)
		}
		fmt.Println("export OPERATOR_PASSWORD_HASH='" + hash + "'")
		return
	}

	if *wordsFile == "" {
		fmt.Println("Nothing to do. Use -words or -hash-password.")
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(*wordsFile)
	if err != nil {
		log.Fatal("Cannot read word file: ", err)
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		if word := strings.TrimSpace(line); word != "" {
			words = append(words, word)
		}
	}
	if len(words) == 0 {
		log.Fatal("Word file is empty")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := moderation.SeedWords(db, words); err != nil {
		log.Fatal("Seeding failed: ", err)
	}
	fmt.Printf("Seeded %d banned words into %s\n", len(words), *dbPath)
}
