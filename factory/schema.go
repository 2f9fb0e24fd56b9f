// Package factory wires a runnable tablekernel.Snapshot/Table out of a
// table root URL and a tablekernel.Engine.
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	jsonschemapkg "github.com/google/jsonschema-go/jsonschema"

	"github.com/lychee-technology/tablekernel"
)

// PropertySchema is one field of a JSONSchema document, mirroring the
// teacher's forma.PropertySchema but restricted to the primitive/array/
// map/struct shapes tablekernel.DataType can express.
type PropertySchema struct {
	Name         string                     `json:"name"`
	Type         string                     `json:"type"`
	DecimalPrec  uint8                      `json:"decimalPrecision,omitempty"`
	DecimalScale uint8                      `json:"decimalScale,omitempty"`
	Nullable     bool                       `json:"nullable"`
	Items        *PropertySchema            `json:"items,omitempty"`
	ItemNullable bool                       `json:"itemNullable,omitempty"`
	ValueType    *PropertySchema            `json:"valueType,omitempty"`
	ValueNullable bool                      `json:"valueNullable,omitempty"`
	Properties   map[string]*PropertySchema `json:"properties,omitempty"`
	Required     []string                   `json:"required,omitempty"`
}

// JSONSchema is the wire document this module writes into a MetadataAction's
// schemaString, round-tripped through google/jsonschema-go for structural
// validation before it is interpreted.
type JSONSchema struct {
	Schema     string                     `json:"$schema,omitempty"`
	Type       string                     `json:"type"`
	Properties map[string]*PropertySchema `json:"properties"`
	Required   []string                   `json:"required"`
}

func dataTypeToProperty(t tablekernel.DataType, nullable bool) *PropertySchema {
	p := &PropertySchema{Nullable: nullable}
	switch t.Tag {
	case tablekernel.TypeDecimal:
		p.Type = "decimal"
		p.DecimalPrec = t.Precision
		p.DecimalScale = t.Scale
	case tablekernel.TypeArray:
		p.Type = "array"
		p.Items = dataTypeToProperty(*t.Element, t.ContainsNull)
	case tablekernel.TypeMap:
		p.Type = "map"
		p.Items = dataTypeToProperty(*t.Key, false)
		p.ValueType = dataTypeToProperty(*t.Value, t.ValueHasNull)
	case tablekernel.TypeStruct:
		p.Type = "struct"
		p.Properties = make(map[string]*PropertySchema, len(t.StructFields))
		for _, f := range t.StructFields {
			p.Properties[f.Name] = dataTypeToProperty(f.Type, f.Nullable)
			if !f.Nullable {
				p.Required = append(p.Required, f.Name)
			}
		}
		sort.Strings(p.Required)
	default:
		p.Type = string(t.Primitive)
	}
	return p
}

func propertyToDataType(p *PropertySchema) (tablekernel.DataType, error) {
	switch p.Type {
	case "decimal":
		return tablekernel.Decimal(p.DecimalPrec, p.DecimalScale), nil
	case "array":
		if p.Items == nil {
			return tablekernel.DataType{}, fmt.Errorf("array property missing items")
		}
		elem, err := propertyToDataType(p.Items)
		if err != nil {
			return tablekernel.DataType{}, err
		}
		return tablekernel.ArrayOf(elem, p.Items.Nullable), nil
	case "map":
		if p.Items == nil || p.ValueType == nil {
			return tablekernel.DataType{}, fmt.Errorf("map property missing items/valueType")
		}
		key, err := propertyToDataType(p.Items)
		if err != nil {
			return tablekernel.DataType{}, err
		}
		val, err := propertyToDataType(p.ValueType)
		if err != nil {
			return tablekernel.DataType{}, err
		}
		return tablekernel.MapOf(key, val, p.ValueType.Nullable), nil
	case "struct":
		required := make(map[string]bool, len(p.Required))
		for _, r := range p.Required {
			required[r] = true
		}
		names := make([]string, 0, len(p.Properties))
		for name := range p.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]tablekernel.StructField, 0, len(names))
		for _, name := range names {
			child := p.Properties[name]
			dt, err := propertyToDataType(child)
			if err != nil {
				return tablekernel.DataType{}, err
			}
			fields = append(fields, tablekernel.StructField{
				Name: name, Type: dt, Nullable: !required[name],
			})
		}
		return tablekernel.StructOf(fields...), nil
	default:
		kind := tablekernel.PrimitiveKind(p.Type)
		switch kind {
		case tablekernel.KindByte, tablekernel.KindShort, tablekernel.KindInteger, tablekernel.KindLong,
			tablekernel.KindFloat, tablekernel.KindDouble, tablekernel.KindString, tablekernel.KindBoolean,
			tablekernel.KindBinary, tablekernel.KindDate, tablekernel.KindTimestamp, tablekernel.KindTimestampNtz:
			return tablekernel.Primitive(kind), nil
		}
		return tablekernel.DataType{}, fmt.Errorf("unrecognized schema property type %q", p.Type)
	}
}

// FromStructType renders a logical schema as the JSONSchema document this
// module persists as a MetadataAction's schemaString.
func FromStructType(st tablekernel.StructType) JSONSchema {
	root := dataTypeToProperty(st.AsDataType(), false)
	return JSONSchema{
		Schema:     "https://json-schema.org/draft/2020-12/schema",
		Type:       "struct",
		Properties: root.Properties,
		Required:   root.Required,
	}
}

// ToStructType parses a MetadataAction's schemaString into the logical
// StructType the rest of the kernel operates on, validating the document's
// shape through google/jsonschema-go's Resolve step before interpreting it
// (a malformed $schema reference or duplicate definition fails here, before
// any column ever reaches ScanBuilder).
func ToStructType(schemaString string) (tablekernel.StructType, error) {
	var doc JSONSchema
	if err := json.Unmarshal([]byte(schemaString), &doc); err != nil {
		return tablekernel.StructType{}, fmt.Errorf("parse schema document: %w", err)
	}

	var resolveCheck jsonschemapkg.Schema
	if err := json.Unmarshal([]byte(schemaString), &resolveCheck); err != nil {
		return tablekernel.StructType{}, fmt.Errorf("parse schema document for validation: %w", err)
	}
	if _, err := resolveCheck.Resolve(&jsonschemapkg.ResolveOptions{}); err != nil {
		return tablekernel.StructType{}, fmt.Errorf("resolve schema document: %w", err)
	}

	root := &PropertySchema{Type: "struct", Properties: doc.Properties, Required: doc.Required}
	dt, err := propertyToDataType(root)
	if err != nil {
		return tablekernel.StructType{}, err
	}
	return tablekernel.NewStructType(dt.StructFields...), nil
}

// MarshalSchemaString renders st as the schemaString field value stored in
// a MetadataAction.
func MarshalSchemaString(st tablekernel.StructType) (string, error) {
	doc := FromStructType(st)
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
