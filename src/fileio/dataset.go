package fileio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mitchellh/mapstructure"
)

var ErrUnknownDatasetFormat = errors.New("dataset must be a json array, a json object with a data array, or csv")

// VisualizationData is a named dataset as uploaded or stored.
type VisualizationData struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Unit        string                    `json:"unit,omitempty"`
	ColorScheme string                    `json:"colorScheme,omitempty"`
	Data        []project_types.DataPoint `json:"data"`
}

var (
	codePatterns  = []string{"regioncode", "code", "지역코드", "코드", "sig_cd", "ctprvn_cd"}
	namePatterns  = []string{"regionname", "name", "지역", "지역명", "시도", "시군구", "region", "sig_kor_nm", "ctp_kor_nm"}
	valuePatterns = []string{"value", "값", "데이터", "data", "인구", "population", "수치", "amount"}
)

// ColumnMapping names the source columns holding code, name and value.
type ColumnMapping struct {
	Code  string
	Name  string
	Value string
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strcase.ToSnake(strings.TrimSpace(h))), "_", "")
}

func findColumn(headers []string, normalized []string, patterns []string, taken map[int]bool) string {
	for _, pattern := range patterns {
		p := normalizeHeader(pattern)
		for i, h := range normalized {
			if h == "" || taken[i] {
				continue
			}
			if strings.Contains(h, p) || strings.Contains(p, h) {
				taken[i] = true
				return headers[i]
			}
		}
	}
	return ""
}

// DetectColumns picks the first header matching each pattern list, patterns
// tried in priority order. A column is assigned to one role at most.
func DetectColumns(headers []string) ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}
	taken := map[int]bool{}
	mapping := ColumnMapping{}
	mapping.Code = findColumn(headers, normalized, codePatterns, taken)
	mapping.Name = findColumn(headers, normalized, namePatterns, taken)
	mapping.Value = findColumn(headers, normalized, valuePatterns, taken)
	return mapping
}

// ToNumber coerces JSON and CSV cells to float64.
func ToNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", ""), 64)
		return f, err == nil
	}
	return 0, false
}

func toText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if f, ok := ToNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// RecordsToPoints converts loosely typed records to data points. A value
// that is not numeric becomes NaN, which every consumer treats as no data.
func RecordsToPoints(records []map[string]interface{}) ([]project_types.DataPoint, error) {
	if len(records) == 0 {
		return []project_types.DataPoint{}, nil
	}
	headerSet := map[string]bool{}
	headers := []string{}
	for _, r := range records {
		for k := range r {
			if !headerSet[k] {
				headerSet[k] = true
				headers = append(headers, k)
			}
		}
	}
	// exact canonical keys win over detection
	mapping := DetectColumns(sortedHeaders(headers))
	if headerSet["regionCode"] {
		mapping.Code = "regionCode"
	}
	if headerSet["regionName"] {
		mapping.Name = "regionName"
	}
	if headerSet["value"] {
		mapping.Value = "value"
	}

	points := make([]project_types.DataPoint, 0, len(records))
	for _, r := range records {
		normalized := make(map[string]interface{}, len(r)+3)
		for k, v := range r {
			normalized[k] = v
		}
		normalized["regionCode"] = toText(r[mapping.Code])
		normalized["regionName"] = toText(r[mapping.Name])
		value, ok := ToNumber(r[mapping.Value])
		if !ok || mapping.Value == "" {
			value = math.NaN()
		}
		normalized["value"] = value

		var point project_types.DataPoint
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &point,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(normalized); err != nil {
			return nil, err
		}
		if point.RegionCode == "" && point.RegionName == "" {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// sortedHeaders keeps detection deterministic for map-sourced headers.
func sortedHeaders(headers []string) []string {
	out := append([]string(nil), headers...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ParseCSV reads a header row followed by data rows.
func ParseCSV(r io.Reader) ([]project_types.DataPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []project_types.DataPoint{}, nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	}
	mapping := DetectColumns(headers)

	records := make([]map[string]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		record := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[h] = strings.TrimSpace(row[i])
			}
		}
		record["regionCode"] = record[mapping.Code]
		record["regionName"] = record[mapping.Name]
		record["value"] = record[mapping.Value]
		records = append(records, record)
	}
	return RecordsToPoints(records)
}

// ParseJSON accepts either an array of records or a VisualizationData object.
func ParseJSON(data []byte) (VisualizationData, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return VisualizationData{}, ErrUnknownDatasetFormat
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	switch trimmed[0] {
	case '[':
		var records []map[string]interface{}
		if err := decoder.Decode(&records); err != nil {
			return VisualizationData{}, err
		}
		points, err := RecordsToPoints(records)
		return VisualizationData{Data: points}, err
	case '{':
		var raw struct {
			Name        string                   `json:"name"`
			Description string                   `json:"description"`
			Unit        string                   `json:"unit"`
			ColorScheme string                   `json:"colorScheme"`
			Data        []map[string]interface{} `json:"data"`
		}
		if err := decoder.Decode(&raw); err != nil {
			return VisualizationData{}, err
		}
		points, err := RecordsToPoints(raw.Data)
		return VisualizationData{
			Name:        raw.Name,
			Description: raw.Description,
			Unit:        raw.Unit,
			ColorScheme: raw.ColorScheme,
			Data:        points,
		}, err
	}
	return VisualizationData{}, ErrUnknownDatasetFormat
}

// ParseDataset sniffs JSON versus CSV content.
func ParseDataset(data []byte) (VisualizationData, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return ParseJSON(trimmed)
	}
	points, err := ParseCSV(bytes.NewReader(trimmed))
	return VisualizationData{Data: points}, err
}
