// Package validation checks spores before integration and validates incoming
// JSON-LD patch and spore documents.
//
// Document validation combines:
//   - go-playground/validator for struct-level validation
//   - json-gold for JSON-LD semantic validation
//
// # Validation Process
//
// 1. JSON parsing - Ensures valid JSON syntax
// 2. JSON-LD validation - @context, @type and @id present and the document expands
// 3. Struct validation - Checks required fields and enum values
//
// Spore validation runs against a target graph and produces a Report of
// discrete messages; see SporeValidator.
//
// # Usage Example
//
//	v := validation.New()
//	result, p, err := v.ValidatePatchDocument(data)
//	if err != nil {
//	    // Handle error
//	}
//	if !result.Valid {
//	    for _, e := range result.Errors {
//	        fmt.Printf("%s: %s\n", e.Field, e.Message)
//	    }
//	}
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/piprate/json-gold/ld"

	"evalgo.org/mycelium/models"
)

// Validator validates JSON-LD patch and spore documents.
type Validator struct {
	// structValidator validates Go struct constraints and tags
	structValidator *validator.Validate

	// jsonldProcessor validates JSON-LD semantic correctness
	jsonldProcessor *ld.JsonLdProcessor

	// loader resolves the mycelium context without a network round trip
	loader *ld.CachingDocumentLoader
}

// FieldError is a single document problem with field-level details.
type FieldError struct {
	// Field is the name of the field that failed validation
	Field string `json:"field"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Value is the invalid value that caused the error (optional)
	Value interface{} `json:"value,omitempty"`
}

// Result is the outcome of a document validation.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// contextDocument is served for models.Context.
var contextDocument = map[string]interface{}{
	"@context": map[string]interface{}{
		"@vocab":       models.Context + "#",
		"schema":       models.NamespaceSchema,
		"rdfs":         models.NamespaceRDFS,
		"label":        "rdfs:label",
		"description":  "schema:description",
		"dateCreated":  "schema:dateCreated",
		"dateModified": "schema:dateModified",
		"version":      "schema:version",
	},
}

// New creates a document validator with the vocabulary context preloaded,
// so JSON-LD expansion never fetches it over the network.
func New() *Validator {
	loader := ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))
	loader.AddDocument(models.Context, contextDocument)
	return &Validator{
		structValidator: newStructValidator(),
		jsonldProcessor: ld.NewJsonLdProcessor(),
		loader:          loader,
	}
}

// newStructValidator reports field errors by their JSON names.
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

type patchDocument struct {
	Type        string `json:"@type" validate:"required,eq=Patch"`
	ID          string `json:"@id" validate:"required"`
	Kind        string `json:"patchType" validate:"required,oneof=structural-add structural-remove composite"`
	Target      string `json:"target" validate:"required"`
	BaseVersion string `json:"baseVersion" validate:"required"`
	Operations  []struct {
		Op string `json:"op" validate:"required,oneof=add remove"`
	} `json:"operations" validate:"required,min=1,dive"`
}

type sporeDocument struct {
	Type    string   `json:"@type" validate:"required,eq=Spore"`
	ID      string   `json:"@id" validate:"required"`
	Level   string   `json:"conformanceLevel" validate:"required,oneof=relaxed moderate strict"`
	Patches []string `json:"patches" validate:"required,min=1,dive,required"`
	Targets []string `json:"targets" validate:"required,min=1,dive,required"`
}

// ValidatePatchDocument validates a patch JSON-LD document and decodes it
// when valid.
func (v *Validator) ValidatePatchDocument(data []byte) (*Result, *models.Patch, error) {
	var doc patchDocument
	if res := v.validateDocument(data, &doc); !res.Valid {
		return res, nil, nil
	}
	var p models.Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return invalidJSON(err), nil, nil
	}
	for i, op := range p.Operations {
		if err := op.Validate(); err != nil {
			return &Result{Errors: []FieldError{{
				Field:   fmt.Sprintf("operations[%d]", i),
				Message: err.Error(),
			}}}, nil, nil
		}
	}
	return &Result{Valid: true}, &p, nil
}

// ValidateSporeDocument validates a spore JSON-LD document and decodes it
// when valid.
func (v *Validator) ValidateSporeDocument(data []byte) (*Result, *models.Spore, error) {
	var doc sporeDocument
	if res := v.validateDocument(data, &doc); !res.Valid {
		return res, nil, nil
	}
	var s models.Spore
	if err := json.Unmarshal(data, &s); err != nil {
		return invalidJSON(err), nil, nil
	}
	return &Result{Valid: true}, &s, nil
}

func (v *Validator) validateDocument(data []byte, into interface{}) *Result {
	if err := json.Unmarshal(data, into); err != nil {
		return invalidJSON(err)
	}
	errs := v.validateJSONLD(data)
	errs = append(errs, v.validateStruct(into)...)
	return &Result{Valid: len(errs) == 0, Errors: errs}
}

func invalidJSON(err error) *Result {
	return &Result{Errors: []FieldError{{
		Field:   "document",
		Message: fmt.Sprintf("Invalid JSON: %v", err),
	}}}
}

// validateJSONLD validates JSON-LD structure using json-gold
func (v *Validator) validateJSONLD(data []byte) []FieldError {
	var errs []FieldError

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return append(errs, FieldError{
			Field:   "document",
			Message: fmt.Sprintf("Invalid JSON: %v", err),
		})
	}

	docMap, ok := doc.(map[string]interface{})
	if !ok {
		return append(errs, FieldError{
			Field:   "document",
			Message: "JSON-LD document must be an object",
		})
	}
	for _, key := range []string{"@context", "@type", "@id"} {
		if _, has := docMap[key]; !has {
			errs = append(errs, FieldError{
				Field:   key,
				Message: fmt.Sprintf("Missing %s field (required for JSON-LD)", key),
			})
		}
	}

	options := ld.NewJsonLdOptions("")
	options.DocumentLoader = v.loader
	if _, err := v.jsonldProcessor.Expand(doc, options); err != nil {
		errs = append(errs, FieldError{
			Field:   "document",
			Message: fmt.Sprintf("Invalid JSON-LD structure: %v", err),
		})
	}
	return errs
}

func (v *Validator) validateStruct(s interface{}) []FieldError {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "document", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe),
			Message: describe(fe),
			Value:   valueOf(fe),
		})
	}
	return out
}

// fieldPath strips the struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Invalid %s: must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eq":
		return fmt.Sprintf("%s must be '%s'", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func valueOf(fe validator.FieldError) interface{} {
	if fe.Tag() == "required" {
		return nil
	}
	return fe.Value()
}
