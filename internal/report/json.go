package report

import (
	"encoding/json"
	"os"

	"datamem/internal/drift"
)

func WriteJSON(path string, r drift.Report) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
