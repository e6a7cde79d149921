// Package ingest takes an untrusted upload through schema validation and
// row normalization. Nothing downstream of this package ever re-inspects
// raw file content.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	"github.com/cloudlens/advisor-hub/pkg/sanitize"
)

// Canonical column names of the tabular input contract. Matching is
// case-insensitive and whitespace-trimmed; ordering does not matter.
const (
	ColCategory         = "category"
	ColBusinessImpact   = "business impact"
	ColRecommendation   = "recommendation text"
	ColSubscriptionID   = "subscription id"
	ColResourceGroup    = "resource group"
	ColResourceName     = "resource name"
	ColResourceType     = "resource type"
	ColPotentialSavings = "potential savings"
	ColCurrency         = "currency"
)

func RequiredColumns() []string {
	return []string{
		ColCategory,
		ColBusinessImpact,
		ColRecommendation,
		ColSubscriptionID,
		ColResourceGroup,
		ColResourceName,
		ColResourceType,
		ColPotentialSavings,
		ColCurrency,
	}
}

// Row maps normalized column names to sanitized raw cell values.
type Row map[string]string

// ValidatedTable is the validator's output: every value has already passed
// through the sanitizer, and all required columns are present.
type ValidatedTable struct {
	Headers []string
	Rows    []Row
}

type Upload struct {
	Filename string
	Data     []byte
}

type ValidatorConfig struct {
	MaxSizeBytes      int64
	AllowedExtensions []string
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxSizeBytes:      20 * 1024 * 1024,
		AllowedExtensions: []string{".csv", ".tsv", ".txt"},
	}
}

type Validator struct {
	config ValidatorConfig
}

func NewValidator(config ValidatorConfig) *Validator {
	if config.MaxSizeBytes <= 0 {
		config.MaxSizeBytes = DefaultValidatorConfig().MaxSizeBytes
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = DefaultValidatorConfig().AllowedExtensions
	}
	return &Validator{config: config}
}

// Validate runs the intake checks in order and fails fast on the first
// violated rule: extension allow-list, size ceiling, content sniffing,
// structural decode, required columns.
func (v *Validator) Validate(upload Upload) (*ValidatedTable, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	allowed := false
	for _, e := range v.config.AllowedExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.NewPipelineError(domain.ErrorValidation,
			fmt.Sprintf("file extension %q is not an accepted tabular format", ext))
	}

	if len(upload.Data) == 0 {
		return nil, domain.NewPipelineError(domain.ErrorValidation, "file is empty")
	}
	if int64(len(upload.Data)) > v.config.MaxSizeBytes {
		return nil, domain.NewPipelineError(domain.ErrorValidation,
			fmt.Sprintf("file size %d exceeds the %d byte limit", len(upload.Data), v.config.MaxSizeBytes))
	}

	// Sniff actual bytes; the declared extension is not trusted.
	contentType := http.DetectContentType(upload.Data)
	if !strings.HasPrefix(contentType, "text/") {
		return nil, domain.NewPipelineError(domain.ErrorValidation,
			fmt.Sprintf("file content sniffed as %q, not delimited text", contentType))
	}

	text, err := decodeText(upload.Data)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorValidation,
			"file is not decodable under any supported text encoding", err)
	}

	return parseTable(text)
}

// decodeText decodes the upload under the supported encoding list:
// UTF-8 (with or without BOM), UTF-16 via BOM, then Windows-1252.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("utf-16 decode: %w", err)
		}
		return string(decoded), nil
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if bytes.IndexByte(data, 0x00) >= 0 {
		return "", fmt.Errorf("content contains NUL bytes without a UTF-16 byte order mark")
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("windows-1252 decode: %w", err)
	}
	return string(decoded), nil
}

// sniffDelimiter picks the field separator by counting candidates in the
// header line. Comma wins ties.
func sniffDelimiter(header string) rune {
	best := ','
	bestCount := strings.Count(header, ",")
	for _, cand := range []rune{';', '\t'} {
		if n := strings.Count(header, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

func parseTable(text string) (*ValidatedTable, error) {
	firstLine, _, _ := strings.Cut(text, "\n")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(firstLine)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.WrapPipelineError(domain.ErrorValidation, "malformed delimited text", err)
	}
	if len(records) == 0 {
		return nil, domain.NewPipelineError(domain.ErrorValidation, "missing header row")
	}

	// Header cells pass through the sanitizer like any other cell before
	// the schema logic looks at them.
	rawHeaders := sanitize.Row(records[0])
	headers := make([]string, len(rawHeaders))
	index := make(map[string]int, len(rawHeaders))
	for i, h := range rawHeaders {
		name := strings.ToLower(strings.TrimSpace(h))
		headers[i] = name
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewPipelineError(domain.ErrorValidation,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		sanitize.Row(record)
		row := make(Row, len(headers))
		for name, i := range index {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return &ValidatedTable{Headers: headers, Rows: rows}, nil
}
