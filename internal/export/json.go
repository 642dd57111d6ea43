package export

import (
	"encoding/json"

	"github.com/pkg/errors"

	"etlmanifest/internal/manifest"
	"etlmanifest/pkg/records"
)

func encodeJSON(rows []records.Row, _ manifest.Output) ([]byte, error) {
	if rows == nil {
		rows = []records.Row{}
	}
	data, err := json.MarshalIndent(rows, "", "    ")
	if err != nil {
		return nil, errors.Wrapf(ErrWrite, "encode json: %v", err)
	}
	return data, nil
}
