package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"etlmanifest/internal/manifest"
	"etlmanifest/pkg/records"
)

const timeLayout = "2006-01-02 15:04:05"

func encodeCSV(rows []records.Row, out manifest.Output) ([]byte, error) {
	enc, err := outputEncoding(out.Encoding)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if out.Delimiter != "" {
		w.Comma, _ = utf8.DecodeRuneInString(out.Delimiter)
	}

	if len(rows) > 0 {
		header := rows[0].Fields()
		if out.Header {
			if err := w.Write(header); err != nil {
				return nil, errors.Wrap(ErrWrite, err.Error())
			}
		}
		record := make([]string, len(header))
		for _, row := range rows {
			for i, f := range header {
				v, _ := row.Get(f)
				record[i] = formatValue(v)
			}
			if err := w.Write(record); err != nil {
				return nil, errors.Wrap(ErrWrite, err.Error())
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(ErrWrite, err.Error())
	}

	if enc == nil {
		return buf.Bytes(), nil
	}
	data, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(ErrWrite, "encode %s: %v", out.Encoding, err)
	}
	return data, nil
}

// outputEncoding returns nil for UTF-8.
func outputEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "%q", name)
	}
	return enc, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(timeLayout)
	}
	return cast.ToString(v)
}
