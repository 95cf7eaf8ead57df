package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/viniciusnovato/finance-sub000/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// first_name aliases
	"firstname":     "first_name",
	"first name":    "first_name",
	"nome":          "first_name",
	"primeiro_nome": "first_name",

	// last_name aliases
	"lastname":  "last_name",
	"last name": "last_name",
	"surname":   "last_name",
	"sobrenome": "last_name",

	// full_name aliases, split on the first space
	"name":          "full_name",
	"fullname":      "full_name",
	"full name":     "full_name",
	"nome_completo": "full_name",
	"nome completo": "full_name",

	// email aliases
	"e-mail":        "email",
	"emailaddress":  "email",
	"email_address": "email",
	"mail":          "email",

	// phone aliases
	"telefone":     "phone",
	"celular":      "phone",
	"mobile":       "phone",
	"phone_number": "phone",

	// tax_id aliases
	"taxid":     "tax_id",
	"cpf":       "tax_id",
	"cnpj":      "tax_id",
	"cpf_cnpj":  "tax_id",
	"document":  "tax_id",
	"documento": "tax_id",

	// status aliases
	"situacao": "status",
	"situação": "status",
}

// CSVParser handles parsing of client CSV files.
type CSVParser struct {
	columnMapping map[string]int
}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser {
	return &CSVParser{columnMapping: make(map[string]int)}
}

// ParseClients parses CSV content into validated client records. Row errors
// are collected and do not stop the parse.
func (p *CSVParser) ParseClients(content string) ([]*models.ClientCreate, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comma = detectDelimiter(content)

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var clients []*models.ClientCreate
	var parseErrors []error
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		if isBlank(record) {
			continue
		}

		client := p.parseRow(record)
		if err := models.ValidateClientCreate(client); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		clients = append(clients, client)
	}

	if len(clients) == 0 && len(parseErrors) == 0 {
		return nil, []error{ErrNoDataRows}
	}
	if len(clients) == 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return clients, parseErrors
}

// detectDelimiter picks ';' for spreadsheets exported with a comma decimal
// locale, ',' otherwise.
func detectDelimiter(content string) rune {
	firstLine := content
	if idx := strings.IndexAny(content, "\r\n"); idx >= 0 {
		firstLine = content[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func normalizeColumn(col string) string {
	normalized := strings.ToLower(strings.TrimSpace(col))
	if alias, ok := ColumnAliases[normalized]; ok {
		return alias
	}
	return normalized
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)

	for i, col := range header {
		normalized := normalizeColumn(strings.TrimPrefix(col, "\ufeff"))
		if _, seen := p.columnMapping[normalized]; !seen {
			p.columnMapping[normalized] = i
		}
	}

	_, hasFirst := p.columnMapping["first_name"]
	_, hasFull := p.columnMapping["full_name"]
	if !hasFirst && !hasFull {
		return fmt.Errorf("%w: first_name", ErrMissingColumns)
	}

	return nil
}

// parseRow parses a single CSV row into a ClientCreate object.
func (p *CSVParser) parseRow(record []string) *models.ClientCreate {
	getValue := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	first, last := getValue("first_name"), getValue("last_name")
	if first == "" {
		first, last = splitFullName(getValue("full_name"), last)
	}

	return &models.ClientCreate{
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(getValue("email")),
		Phone:     getValue("phone"),
		TaxID:     getValue("tax_id"),
		Status:    models.NormalizeClientStatus(getValue("status")),
	}
}

func splitFullName(full, last string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", last
	}
	if last == "" && len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return parts[0], last
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) *CSVValidationResult {
	result := &CSVValidationResult{
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.Comma = detectDelimiter(content)

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result
	}

	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		normalizedColumns[normalizeColumn(col)] = true
		result.Columns = append(result.Columns, col)
	}
	if !normalizedColumns["first_name"] && !normalizedColumns["full_name"] {
		result.MissingColumns = append(result.MissingColumns, "first_name")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		if !isBlank(record) {
			result.RowCount++
		}
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
