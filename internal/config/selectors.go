package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"carwatch/internal/scraper"
)

// LoadSelectors загружает селекторы из YAML файла
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	var selectors scraper.Selectors
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(&selectors); err != nil {
		return nil, err
	}

	return &selectors, nil
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *scraper.Selectors) error {
	if s.Item == "" {
		return invalid("selectors.item", "is required in selectors file")
	}
	for i, skip := range s.Skip {
		if skip == "" {
			return invalid(fmt.Sprintf("selectors.skip[%d]", i), "must not be empty")
		}
	}
	return nil
}
