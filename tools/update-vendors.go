package main

import (
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"strings"
)

// Rebuilds mac_dbs.csv from the IEEE MA-L registry.
func main() {

	resp, err := http.Get("https://standards-oui.ieee.org/oui/oui.csv")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	output, err := os.Create("./mac_dbs.csv")
	if err != nil {
		panic(err)
	}
	defer output.Close()

	writer := csv.NewWriter(output)
	if err := writer.Write([]string{"MAC", "VENDOR"}); err != nil {
		panic(err)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Registry,Assignment,Organization Name,Organization Address
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}

		if header {
			header = false
			continue
		}

		if len(record) < 3 || len(record[1]) != 6 || record[2] == "" {
			continue
		}

		if err := writer.Write([]string{strings.ToUpper(record[1]), strings.TrimSpace(record[2])}); err != nil {
			panic(err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		panic(err)
	}
}
