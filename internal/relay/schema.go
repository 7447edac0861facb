// Package relay binds documents relayed from the upstream accounting system
// to assembler input. Upstream values live in custom fields keyed by opaque
// identifiers; a versioned Schema names the identifier of each logical field.
package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Scope is where a custom field lives upstream.
type Scope string

const (
	ScopeBusiness Scope = "business"
	ScopeInvoice  Scope = "invoice"
	ScopeItem     Scope = "item"
)

// Logical field names.
const (
	FieldCertificate     = "certificate_info"
	FieldLastCounter     = "last_icv"
	FieldLastHash        = "last_pih"
	FieldInvoiceSubType  = "invoice_subtype"
	FieldPaymentMeans    = "payment_means"
	FieldInstructionNote = "instruction_note"
	FieldItemTaxCategory = "item_tax_category"
)

var fieldScopes = map[string]Scope{
	FieldCertificate:     ScopeBusiness,
	FieldLastCounter:     ScopeBusiness,
	FieldLastHash:        ScopeBusiness,
	FieldInvoiceSubType:  ScopeInvoice,
	FieldPaymentMeans:    ScopeInvoice,
	FieldInstructionNote: ScopeInvoice,
	FieldItemTaxCategory: ScopeItem,
}

var ErrInvalidSchema = errors.New("invalid_relay_schema")

type Field struct {
	Name  string `mapstructure:"name"`
	Scope Scope  `mapstructure:"scope"`
	Key   string `mapstructure:"key"`
}

type Schema struct {
	Version int     `mapstructure:"version"`
	Fields  []Field `mapstructure:"fields"`

	keys map[string]string
}

// DefaultSchema is version 1 of the upstream field layout.
func DefaultSchema() Schema {
	s := Schema{
		Version: 1,
		Fields: []Field{
			{Name: FieldCertificate, Scope: ScopeBusiness, Key: "zatca-certificate-info"},
			{Name: FieldLastCounter, Scope: ScopeBusiness, Key: "zatca-last-icv"},
			{Name: FieldLastHash, Scope: ScopeBusiness, Key: "zatca-last-pih"},
			{Name: FieldInvoiceSubType, Scope: ScopeInvoice, Key: "zatca-invoice-subtype"},
			{Name: FieldPaymentMeans, Scope: ScopeInvoice, Key: "zatca-payment-means"},
			{Name: FieldInstructionNote, Scope: ScopeInvoice, Key: "zatca-instruction-note"},
			{Name: FieldItemTaxCategory, Scope: ScopeItem, Key: "zatca-item-tax-category"},
		},
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

// Validate checks that every logical field is declared once, in its scope,
// with a key, and indexes the keys for lookup.
func (s *Schema) Validate() error {
	if s.Version <= 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidSchema)
	}
	keys := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		scope, known := fieldScopes[name]
		if !known {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidSchema, f.Name)
		}
		if f.Scope != scope {
			return fmt.Errorf("%w: field %q belongs to scope %q", ErrInvalidSchema, name, scope)
		}
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("%w: field %q has no key", ErrInvalidSchema, name)
		}
		if _, dup := keys[name]; dup {
			return fmt.Errorf("%w: field %q declared twice", ErrInvalidSchema, name)
		}
		keys[name] = strings.TrimSpace(f.Key)
	}
	for name := range fieldScopes {
		if _, ok := keys[name]; !ok {
			return fmt.Errorf("%w: field %q missing", ErrInvalidSchema, name)
		}
	}
	s.keys = keys
	return nil
}

// Key returns the upstream identifier of a logical field.
func (s Schema) Key(name string) string {
	return s.keys[name]
}

// LoadSchema reads a schema file. An empty path yields DefaultSchema.
func LoadSchema(path string) (Schema, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSchema(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Schema{}, fmt.Errorf("read relay schema: %w", err)
	}

	var s Schema
	if err := v.Unmarshal(&s); err != nil {
		return Schema{}, fmt.Errorf("decode relay schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}
