package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// Decode разбирает табличный файл (CSV): первая строка — шапка, она же
// источник подписей колонок; остальные — плоские строки ключ-значение.
// Семантика "только первый лист" для CSV тривиальна. Ноль строк данных —
// ошибка: загружать нечего.
func Decode(r io.Reader) (labels []string, rows []map[string]any, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // рваные строки дополним/обрежем сами
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "header read failed")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff") // BOM из Excel
	}
	for _, h := range header {
		labels = append(labels, strings.TrimSpace(h))
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "row read failed")
		}
		row := make(map[string]any, len(labels))
		empty := true
		for i, label := range labels {
			if label == "" {
				continue
			}
			var v string
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			if v != "" {
				empty = false
			}
			row[label] = v
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, errors.New("no data rows")
	}
	return labels, rows, nil
}
