package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Offline BadgerDB inspector. Run it against a stopped gateway's
// database to see what the repositories actually persisted.
//
// Key namespaces: tenant: (roster), cred:, config:, otp:, stat:,
// msg: and msgt: (archive), blacklist:.
func main() {
	dbPath := flag.String("db", "./badger", "Path to badger DB")
	prefix := flag.String("prefix", "tenant:", "Prefix to scan")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Namespace", "Tenant", "Size", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			namespace, tenant := splitKey(key)

			err := item.Value(func(v []byte) error {
				table.Append([]string{
					key,
					namespace,
					tenant,
					fmt.Sprintf("%d B", len(v)),
					detail(namespace, v),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func splitKey(key string) (namespace, tenant string) {
	parts := strings.SplitN(key, ":", 3)
	namespace = parts[0]
	if len(parts) > 1 {
		tenant = parts[1]
	}
	return namespace, tenant
}

// detail renders a short, human-readable summary per namespace.
// Credential blobs are binary sqlite files, so only their size matters.
func detail(namespace string, value []byte) string {
	switch namespace {
	case "cred":
		return "(sqlite session blob)"
	case "msgt":
		return "(time index entry)"
	case "stat":
		if len(value) == 8 {
			return fmt.Sprintf("count=%d", binary.BigEndian.Uint64(value))
		}
		return "(malformed counter)"
	case "config", "msg", "otp":
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, value); err != nil {
			return "(not json)"
		}
		s := compact.String()
		if len(s) > 80 {
			s = s[:80] + "..."
		}
		return s
	case "blacklist":
		return "(word list entry)"
	default:
		return ""
	}
}
