// Package config provides configuration management for the WOMS rules engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"woms-rules/internal/model"
)

// LoadSubmissions reads a batch of metric submissions from the specified YAML file.
// Field-level validation is left to the processor so that one bad entry does
// not reject the whole batch.
func LoadSubmissions(path string) ([]*model.MetricSubmission, error) {
	if path == "" {
		return nil, fmt.Errorf("submissions file path is required")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("submissions file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions file: %w", err)
	}

	var batch model.SubmissionBatch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse submissions file: %w", err)
	}

	if len(batch.Submissions) == 0 {
		return nil, fmt.Errorf("no submissions defined in file: %s", path)
	}

	for i, s := range batch.Submissions {
		if s == nil {
			return nil, fmt.Errorf("submission at index %d is empty", i)
		}
	}

	return batch.Submissions, nil
}
