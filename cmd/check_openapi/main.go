package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// requiredOperations lists every route the server registers.
var requiredOperations = map[string][]string{
	"/healthz":            {"get"},
	"/auth/register":      {"post"},
	"/auth/login":         {"post"},
	"/auth/logout":        {"post"},
	"/auth/me":            {"get"},
	"/books":              {"get", "post"},
	"/books/{id}":         {"put", "delete"},
	"/books/{id}/cover":   {"post"},
	"/profile":            {"get", "put"},
	"/sales":              {"get"},
	"/sales/seed":         {"post"},
	"/sales/seed/{jobId}": {"get"},
	"/dashboard/stats":    {"get"},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI check passed.")
}

func run(path string) error {
	doc, err := loadDoc(path)
	if err != nil {
		return err
	}
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	errDetail, err := getSchema(doc, "ErrorDetail")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	if err := validateErrorDetail(errDetail); err != nil {
		return err
	}
	return validatePaths(doc)
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	errorProp, ok := s.Properties["error"]
	if !ok || errorProp.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	codeProp, ok := s.Properties["code"]
	if !ok || codeProp.Type != "string" {
		return errors.New("ErrorResponse.code must be string")
	}
	reqIDProp, ok := s.Properties["requestId"]
	if !ok || reqIDProp.Type != "string" {
		return errors.New("ErrorResponse.requestId must be string")
	}
	detailsProp, ok := s.Properties["details"]
	if !ok || detailsProp.Type != "array" {
		return errors.New("ErrorResponse.details must be array")
	}
	if detailsProp.Items == nil || strings.TrimSpace(detailsProp.Items.Ref) != "#/components/schemas/ErrorDetail" {
		return errors.New("ErrorResponse.details.items must reference ErrorDetail")
	}
	return nil
}

func validateErrorDetail(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorDetail must be object")
	}
	required := makeSet(s.Required)
	if !required["reason"] {
		return fmt.Errorf("ErrorDetail.required must include \"reason\"")
	}
	reasonProp, ok := s.Properties["reason"]
	if !ok || reasonProp.Type != "string" {
		return errors.New("ErrorDetail.reason must be string")
	}
	return nil
}

func validatePaths(doc openAPIDoc) error {
	var missing []string
	for path, methods := range requiredOperations {
		ops, ok := doc.Paths[path]
		for _, method := range methods {
			if !ok {
				missing = append(missing, strings.ToUpper(method)+" "+path)
				continue
			}
			if _, ok := ops[method]; !ok {
				missing = append(missing, strings.ToUpper(method)+" "+path)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("operations missing from paths: %s", strings.Join(missing, ", "))
	}
	return nil
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
