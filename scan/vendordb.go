package scan

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

const DefaultAppendFile = "new_db.csv"

// AppendVendorRecords appends MAC,VENDOR rows to path, writing the header
// only when the file is new or empty.
func AppendVendorRecords(path string, records []VendorRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write([]string{"MAC", "VENDOR"}); err != nil {
			return err
		}
	}

	for _, r := range records {
		if err := w.Write([]string{strings.ReplaceAll(r.MAC, "-", ""), r.Vendor}); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
