package domain

import (
	"fmt"
	"strings"
)

// Field describes one text attribute of a resource document.
type Field struct {
	Name     string
	Required bool
	Unique   bool
	// Default is stored when the field is absent from the create payload.
	Default *string
	// Assigned fields always store Default; the create payload is never read.
	Assigned bool
}

// Schema parameterizes a record-keeping resource.
type Schema struct {
	// Service is the name reported by the health endpoint.
	Service string
	// Collection names the stored collection and the HTTP resource path.
	Collection string
	Fields     []Field
}

var activeStatus = "active"

// UsersSchema describes the users resource. Email is unique across all users.
var UsersSchema = Schema{
	Service:    "users-service",
	Collection: "users",
	Fields: []Field{
		{Name: "name", Required: true},
		{Name: "email", Required: true, Unique: true},
	},
}

// ProjectsSchema describes the projects resource. OwnerEmail is not checked
// against existing users.
var ProjectsSchema = Schema{
	Service:    "projects-service",
	Collection: "projects",
	Fields: []Field{
		{Name: "name", Required: true},
		{Name: "ownerEmail"},
		{Name: "status", Default: &activeStatus, Assigned: true},
	},
}

// Path returns the HTTP path of the collection.
func (s Schema) Path() string {
	return "/" + s.Collection
}

// RequiredFields lists the names of the required fields in declaration order.
func (s Schema) RequiredFields() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// UniqueFields lists the names of fields carrying a uniqueness constraint.
func (s Schema) UniqueFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Unique {
			out = append(out, f.Name)
		}
	}
	return out
}

// FieldError reports one invalid attribute of a create payload.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationErrors is returned by Prepare when the payload is rejected.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+" "+fe.Reason)
	}
	return strings.Join(parts, ", ")
}

// Details renders the errors as a field -> reason map.
func (v ValidationErrors) Details() map[string]any {
	out := make(map[string]any, len(v))
	for _, fe := range v {
		out[fe.Field] = fe.Reason
	}
	return out
}

// Prepare validates a decoded create payload and returns the fields to store.
// Unknown keys are ignored. Optional fields that are missing, null or empty
// are omitted; defaults are applied to fields that carry one. Assigned fields
// take their default whatever the payload holds.
func (s Schema) Prepare(input map[string]any) (map[string]string, error) {
	fields := make(map[string]string, len(s.Fields))
	var errs ValidationErrors

	for _, f := range s.Fields {
		if f.Assigned {
			if f.Default != nil {
				fields[f.Name] = *f.Default
			}
			continue
		}
		raw, present := input[f.Name]
		if present && raw != nil {
			str, ok := raw.(string)
			if !ok {
				errs = append(errs, FieldError{Field: f.Name, Reason: "must be a string"})
				continue
			}
			if strings.TrimSpace(str) != "" {
				fields[f.Name] = str
				continue
			}
		}
		switch {
		case f.Required:
			errs = append(errs, FieldError{Field: f.Name, Reason: "is required"})
		case f.Default != nil:
			fields[f.Name] = *f.Default
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return fields, nil
}

// RequiredMessage is the client-facing summary of the required fields.
func (s Schema) RequiredMessage() string {
	req := s.RequiredFields()
	switch len(req) {
	case 0:
		return "invalid payload"
	case 1:
		return fmt.Sprintf("%s is required", req[0])
	default:
		return fmt.Sprintf("%s and %s are required", strings.Join(req[:len(req)-1], ", "), req[len(req)-1])
	}
}
