// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var configSchema = jsonschema.Must(schemaJSON)

// validateSchema checks the raw YAML document before it is bound to structs
// so that unknown keys and wrong types are reported by path.
func validateSchema(data []byte) error {
	var document interface{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	jsonDocument, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("convert config to json: %w", err)
	}

	keyErrors, err := configSchema.ValidateBytes(context.Background(), jsonDocument)
	if err != nil {
		return fmt.Errorf("failed to execute schema validator: %w", err)
	} else if len(keyErrors) > 0 {
		return fmt.Errorf("failed schema validation: %v", keyErrors)
	}
	return nil
}
