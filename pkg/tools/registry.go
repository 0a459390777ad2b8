package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Parameter defines one argument of an operation
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for operation execution
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Definition describes one callable operation
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Result is what crosses the dispatcher boundary: a success payload or
// an explicit error-flagged payload, never an uncaught failure
type Result struct {
	Success bool        `json:"success"`
	Output  interface{} `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Registry holds operations and validates their arguments
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	timeout time.Duration
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty operation registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		timeout: 60 * time.Second,
		logger:  logger,
	}
}

// Register installs an operation definition
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("operation name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("operation %s has no handler", def.Name)
	}

	schema, err := generateSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("operation %s already registered", def.Name)
	}
	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	r.logger.Debug().Str("operation", def.Name).Msg("Operation registered")
	return nil
}

// List returns all registered operation names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Get returns an operation definition by name
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Execute runs an operation. Validation failures, handler errors and
// timeouts all come back as error-flagged results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) Result {
	callID, _ := gonanoid.New()
	start := time.Now()

	r.mu.RLock()
	tool := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if tool == nil {
		return Result{Success: false, Error: fmt.Sprintf("unknown operation: %s", name)}
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArgs(schema, args); err != nil {
		r.logger.Warn().Str("operation", name).Str("call_id", callID).Err(err).
			Msg("Argument validation failed")
		return Result{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("operation panicked: %v", rec)
			}
		}()
		out, err := tool.Handler(timeoutCtx, args)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- out
	}()

	select {
	case out := <-resultCh:
		r.logger.Debug().Str("operation", name).Str("call_id", callID).
			Dur("duration", time.Since(start)).Msg("Operation completed")
		return Result{Success: true, Output: out}

	case err := <-errCh:
		r.logger.Error().Str("operation", name).Str("call_id", callID).
			Dur("duration", time.Since(start)).Err(err).Msg("Operation failed")
		return Result{Success: false, Error: err.Error()}

	case <-timeoutCtx.Done():
		r.logger.Error().Str("operation", name).Str("call_id", callID).
			Msg("Operation timed out")
		return Result{Success: false, Error: fmt.Sprintf("operation timed out after %v", r.timeout)}
	}
}

func generateSchema(def Definition) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := []string{}
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("validation errors: %v", msgs)
	}

	return nil
}
